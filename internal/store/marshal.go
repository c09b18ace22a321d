package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/regen"
)

// marshalRecord converts an operation record to canonical JSON TEXT.
func marshalRecord(rec ir.OperationRecord) (string, error) {
	obj, err := ir.EncodeRecord(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

func unmarshalRecord(data string) (ir.OperationRecord, error) {
	obj, err := ir.ParseCanonical([]byte(data))
	if err != nil {
		return ir.OperationRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	rec, err := ir.DecodeRecord(obj)
	if err != nil {
		return ir.OperationRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

// marshalSketch encodes a sketch with nano-unit coordinates:
// {"regions":[[[x,y],...],...],"z":n}.
func marshalSketch(s document.Sketch) (string, error) {
	regions := make(ir.IRArray, len(s.Regions))
	for i, region := range s.Regions {
		pts := make(ir.IRArray, len(region))
		for j, p := range region {
			pts[j] = ir.IRArray{ir.IRInt(ir.Nano(p[0])), ir.IRInt(ir.Nano(p[1]))}
		}
		regions[i] = pts
	}
	data, err := ir.MarshalCanonical(ir.IRObject{
		"regions": regions,
		"z":       ir.IRInt(ir.Nano(s.Z)),
	})
	if err != nil {
		return "", fmt.Errorf("marshal sketch: %w", err)
	}
	return string(data), nil
}

func unmarshalSketch(data string) (document.Sketch, error) {
	obj, err := ir.ParseCanonical([]byte(data))
	if err != nil {
		return document.Sketch{}, fmt.Errorf("unmarshal sketch: %w", err)
	}
	z, err := obj.Int("z")
	if err != nil {
		return document.Sketch{}, fmt.Errorf("unmarshal sketch: %w", err)
	}
	regions, err := obj.Array("regions")
	if err != nil {
		return document.Sketch{}, fmt.Errorf("unmarshal sketch: %w", err)
	}

	s := document.Sketch{Z: ir.FromNano(z)}
	for i, rv := range regions {
		pts, ok := rv.(ir.IRArray)
		if !ok {
			return document.Sketch{}, fmt.Errorf("unmarshal sketch: region %d is not an array", i)
		}
		region := make([][2]float64, 0, len(pts))
		for j, pv := range pts {
			xy, ok := pv.(ir.IRArray)
			if !ok || len(xy) != 2 {
				return document.Sketch{}, fmt.Errorf("unmarshal sketch: region %d point %d is not a pair", i, j)
			}
			x, xok := xy[0].(ir.IRInt)
			y, yok := xy[1].(ir.IRInt)
			if !xok || !yok {
				return document.Sketch{}, fmt.Errorf("unmarshal sketch: region %d point %d is not integral", i, j)
			}
			region = append(region, [2]float64{ir.FromNano(int64(x)), ir.FromNano(int64(y))})
		}
		s.Regions = append(s.Regions, region)
	}
	return s, nil
}

// marshalJSON encodes v with HTML escaping disabled and sorted map keys.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func marshalBodies(bodies []string) (string, error) {
	if bodies == nil {
		bodies = []string{}
	}
	data, err := marshalJSON(bodies)
	if err != nil {
		return "", fmt.Errorf("marshal base bodies: %w", err)
	}
	return data, nil
}

func unmarshalBodies(data string) ([]string, error) {
	var bodies []string
	if err := json.Unmarshal([]byte(data), &bodies); err != nil {
		return nil, fmt.Errorf("unmarshal base bodies: %w", err)
	}
	return bodies, nil
}

func marshalFailures(failed []regen.Failure) (string, error) {
	if failed == nil {
		failed = []regen.Failure{}
	}
	data, err := marshalJSON(failed)
	if err != nil {
		return "", fmt.Errorf("marshal failures: %w", err)
	}
	return data, nil
}

func unmarshalFailures(data string) ([]regen.Failure, error) {
	var failed []regen.Failure
	if err := json.Unmarshal([]byte(data), &failed); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	if failed == nil {
		failed = []regen.Failure{}
	}
	return failed, nil
}
