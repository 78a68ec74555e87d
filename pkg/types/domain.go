package types

// Model represents a model file on disk that the local backend can serve.
type Model struct {
	// Stable identifier for the model: the file name.
	// example: mistral-7b-instruct-v0.2.Q4_K_M.gguf
	ID string `json:"id" example:"mistral-7b-instruct-v0.2.Q4_K_M.gguf"`
	// Human-friendly name.
	// example: mistral-7b-instruct-v0.2
	Name string `json:"name" example:"mistral-7b-instruct-v0.2"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/mistral-7b-instruct-v0.2.Q4_K_M.gguf
	Path string `json:"path,omitempty" example:"/home/user/models/mistral-7b-instruct-v0.2.Q4_K_M.gguf"`
	// Quantization level parsed from the file name.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Prompt template inferred from the file name.
	// example: llama2
	Format string `json:"format,omitempty" example:"llama2"`
	// File size in bytes.
	// example: 4368439584
	SizeBytes int64 `json:"size_bytes,omitempty" example:"4368439584"`
}
