package supervisor

import (
	"runtime"

	"inferd/internal/detect"
)

// threadsFor returns the explicit thread count, or two thirds of the cores
// rounded up, never less than one.
func threadsFor(requested, cores int) int {
	if requested > 0 {
		return requested
	}
	n := (cores*2 + 2) / 3
	if n < 1 {
		n = 1
	}
	return n
}

// gpuLayersFor returns the explicit layer count, or full offload when the
// hardware is capable and GPU use is enabled.
func gpuLayersFor(requested int, useGPU bool, capable func() bool) int {
	if requested >= 0 {
		return requested
	}
	if useGPU && capable() {
		return gpuAllLayers
	}
	return 0
}

func (s *Supervisor) resolve(o Options) Options {
	if o.ContextLength <= 0 {
		o.ContextLength = DefaultContextLength
	}
	o.Threads = threadsFor(o.Threads, runtime.NumCPU())
	o.GPULayers = gpuLayersFor(o.GPULayers, s.cfg.UseGPU, s.gpuCapable)
	return o
}

func defaultGPUCapable() bool { return detect.GPU().Capable() }
