//go:build js && wasm
// +build js,wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/MeKo-Tech/fourierwaves/internal/render"
	"github.com/MeKo-Tech/fourierwaves/internal/wave"
)

// The last decoded preset is kept so per-pixel sampling from JS does not
// reparse the document.
var (
	cachedDoc     string
	cachedSession preset.Session
)

func sessionFor(doc string) (preset.Session, error) {
	if doc == cachedDoc && cachedDoc != "" {
		return cachedSession, nil
	}
	session := preset.Default()
	if doc != "" {
		var err error
		session, err = preset.DecodeBytes([]byte(doc), preset.FormatJSON)
		if err != nil {
			return preset.Session{}, err
		}
	}
	cachedDoc, cachedSession = doc, session
	return session, nil
}

// sample is fourierwavesSample(presetJSON, u, v, t). It returns the encoded
// normal and the normalized height at one point.
func sample(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return map[string]interface{}{"error": "usage: fourierwavesSample(presetJSON, u, v, t)"}
	}

	session, err := sessionFor(args[0].String())
	if err != nil {
		return map[string]interface{}{"error": fmt.Sprintf("failed to parse preset: %v", err)}
	}

	uv := wave.Vec2{X: args[1].Float(), Y: args[2].Float()}
	t := args[3].Float()
	layers := session.Stack.Active()

	n := wave.EvaluateNormal(layers, len(layers), uv, t, session.Config)
	h := wave.EvaluateHeight(layers, len(layers), uv, t, session.Config)
	return map[string]interface{}{
		"r":      n.R,
		"g":      n.G,
		"b":      n.B,
		"height": h,
	}
}

// renderFrame is fourierwavesRenderFrame(presetJSON, size, t). It returns
// the frame as PNG bytes in a Uint8Array.
func renderFrame(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return map[string]interface{}{"error": "usage: fourierwavesRenderFrame(presetJSON, size, t)"}
	}

	session, err := sessionFor(args[0].String())
	if err != nil {
		return map[string]interface{}{"error": fmt.Sprintf("failed to parse preset: %v", err)}
	}

	r := &render.Renderer{Workers: 1}
	data, err := r.RenderPNG(context.Background(), session.Frame(), args[1].Int(), args[2].Float(), "speed")
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	out := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(out, data)
	return out
}

func initModule(this js.Value, args []js.Value) interface{} {
	fmt.Println("FourierWaves WASM module initialized")
	return map[string]interface{}{"status": "ready", "maxLayers": wave.MaxLayers}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("fourierwavesSample", js.FuncOf(sample))
	js.Global().Set("fourierwavesRenderFrame", js.FuncOf(renderFrame))
	js.Global().Set("fourierwavesInit", js.FuncOf(initModule))

	fmt.Println("FourierWaves WASM module loaded")
	<-c
}
