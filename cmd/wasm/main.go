//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/brassbook/brassbook/pkg/brassbook/melody"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorReferenceAudio
	ErrorRecordingAudio
)

// compareMelodies scores a recording against a reference entirely in the
// browser. Arguments: refSamples, refRate, refChannels, recSamples, recRate,
// recChannels. Returns {error: number, data: result array | string}.
func compareMelodies(this js.Value, args []js.Value) any {
	if len(args) < 6 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 6 arguments: refSamples, refRate, refChannels, recSamples, recRate, recChannels")
	}

	ref, refRate, err := readSamples(args[0], args[1], args[2])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, "reference: "+err.Error())
	}
	rec, recRate, err := readSamples(args[3], args[4], args[5])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, "recording: "+err.Error())
	}

	cfg := melody.DefaultConfig()
	refMelody, err := melody.Extract(ref, refRate, cfg)
	if err != nil {
		return makeErrorResponse(ErrorReferenceAudio, fmt.Sprintf("Failed to analyse reference: %v", err))
	}
	recMelody, err := melody.Extract(rec, recRate, cfg)
	if err != nil {
		return makeErrorResponse(ErrorRecordingAudio, fmt.Sprintf("Failed to analyse recording: %v", err))
	}
	res := melody.Compare(refMelody, recMelody, cfg)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", js.ValueOf([]any{
		res.Integral,
		toAny(res.Rhythm),
		toAny(res.Height),
		toAny(res.Volume),
		toAny(res.Average),
	}))
	return result
}

func readSamples(arr, rateJS, channelsJS js.Value) ([]float64, int, error) {
	if arr.Type() != js.TypeObject {
		return nil, 0, fmt.Errorf("samples must be an Array or Float32Array")
	}
	if rateJS.Type() != js.TypeNumber || channelsJS.Type() != js.TypeNumber {
		return nil, 0, fmt.Errorf("sample rate and channels must be numbers")
	}

	rate := rateJS.Int()
	channels := channelsJS.Int()
	if rate <= 0 {
		return nil, 0, fmt.Errorf("invalid sample rate: %d", rate)
	}
	if channels < 1 || channels > 2 {
		return nil, 0, fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got: %d", channels)
	}

	length := arr.Length()
	if length == 0 {
		return nil, 0, fmt.Errorf("samples are empty")
	}
	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		samples[i] = arr.Index(i).Float()
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}
	return samples, rate, nil
}

func stereoToMono(stereo []float64) []float64 {
	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2.0
	}
	return mono
}

func toAny[T int | float64](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call("log", "🎺 Brassbook WASM module initializing...")
	}

	js.Global().Set("compareMelodies", js.FuncOf(compareMelodies))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	if !console.IsUndefined() {
		console.Call("log", "✅ Brassbook WASM module ready")
	}

	select {}
}
