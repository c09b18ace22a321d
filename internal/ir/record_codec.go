package ir

import "fmt"

// EncodeRecord renders an operation record as a float-free IRObject.
// Parameter quantities are stored in nano-units.
func EncodeRecord(r OperationRecord) (IRObject, error) {
	input, err := EncodeInput(r.Input)
	if err != nil {
		return nil, fmt.Errorf("op %s: %w", r.ID, err)
	}
	params, err := EncodeParams(r.Params)
	if err != nil {
		return nil, fmt.Errorf("op %s: %w", r.ID, err)
	}
	bodies := make(IRArray, len(r.ResultBodies))
	for i, b := range r.ResultBodies {
		bodies[i] = IRString(b)
	}
	return IRObject{
		"op_id":         IRString(r.ID),
		"type":          IRString(r.Type()),
		"input":         input,
		"params":        params,
		"result_bodies": bodies,
	}, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(obj IRObject) (OperationRecord, error) {
	var r OperationRecord
	id, err := obj.String("op_id")
	if err != nil {
		return r, err
	}
	r.ID = id

	typ, err := obj.String("type")
	if err != nil {
		return r, fmt.Errorf("op %s: %w", id, err)
	}
	inputObj, err := obj.Object("input")
	if err != nil {
		return r, fmt.Errorf("op %s: %w", id, err)
	}
	if r.Input, err = DecodeInput(inputObj); err != nil {
		return r, fmt.Errorf("op %s: %w", id, err)
	}
	paramsObj, err := obj.Object("params")
	if err != nil {
		return r, fmt.Errorf("op %s: %w", id, err)
	}
	if r.Params, err = DecodeParams(OpType(typ), paramsObj); err != nil {
		return r, fmt.Errorf("op %s: %w", id, err)
	}

	bodies, err := obj.Array("result_bodies")
	if err != nil {
		return r, fmt.Errorf("op %s: %w", id, err)
	}
	for i, b := range bodies {
		s, ok := b.(IRString)
		if !ok {
			return r, fmt.Errorf("op %s: result_bodies[%d]: expected string, got %T", id, i, b)
		}
		r.ResultBodies = append(r.ResultBodies, string(s))
	}
	return r, nil
}

// EncodeInput renders an input reference with its variant tag.
func EncodeInput(in InputRef) (IRObject, error) {
	switch v := in.(type) {
	case SketchRegionRef:
		return IRObject{"tag": IRString(v.Tag()), "sketch": IRString(v.Sketch), "region": IRInt(v.Region)}, nil
	case FaceRef:
		return IRObject{"tag": IRString(v.Tag()), "body": IRString(v.Body), "element": IRString(v.Element)}, nil
	case BodyRef:
		return IRObject{"tag": IRString(v.Tag()), "body": IRString(v.Body)}, nil
	default:
		return nil, fmt.Errorf("unknown input reference %T", in)
	}
}

// DecodeInput is the inverse of EncodeInput.
func DecodeInput(obj IRObject) (InputRef, error) {
	tag, err := obj.String("tag")
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	switch tag {
	case "sketch_region":
		sketch, err := obj.String("sketch")
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		region, err := obj.Int("region")
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		return SketchRegionRef{Sketch: sketch, Region: int(region)}, nil
	case "face":
		body, err := obj.String("body")
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		elem, err := obj.String("element")
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		return FaceRef{Body: body, Element: ElementID(elem)}, nil
	case "body":
		body, err := obj.String("body")
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		return BodyRef{Body: body}, nil
	default:
		return nil, fmt.Errorf("input: unknown tag %q", tag)
	}
}

// EncodeParams renders a parameter variant. Every case of the sum type is
// listed; adding a variant without extending this switch is an error.
func EncodeParams(p Params) (IRObject, error) {
	switch v := p.(type) {
	case ExtrudeParams:
		return IRObject{"distance": IRInt(Nano(v.Distance))}, nil
	case RevolveParams:
		return IRObject{"angle_deg": IRInt(Nano(v.AngleDeg))}, nil
	case FilletParams:
		return IRObject{"radius": IRInt(Nano(v.Radius))}, nil
	case ChamferParams:
		return IRObject{"distance": IRInt(Nano(v.Distance))}, nil
	case ShellParams:
		return IRObject{"thickness": IRInt(Nano(v.Thickness))}, nil
	case BooleanParams:
		return IRObject{"mode": IRString(v.Mode), "tool": IRString(v.Tool)}, nil
	default:
		return nil, fmt.Errorf("unknown params %T", p)
	}
}

// DecodeParams is the inverse of EncodeParams.
func DecodeParams(typ OpType, obj IRObject) (Params, error) {
	nano := func(key string) (float64, error) {
		n, err := obj.Int(key)
		if err != nil {
			return 0, fmt.Errorf("params: %w", err)
		}
		return FromNano(n), nil
	}

	switch typ {
	case OpExtrude:
		d, err := nano("distance")
		return ExtrudeParams{Distance: d}, err
	case OpRevolve:
		a, err := nano("angle_deg")
		return RevolveParams{AngleDeg: a}, err
	case OpFillet:
		r, err := nano("radius")
		return FilletParams{Radius: r}, err
	case OpChamfer:
		d, err := nano("distance")
		return ChamferParams{Distance: d}, err
	case OpShell:
		t, err := nano("thickness")
		return ShellParams{Thickness: t}, err
	case OpBoolean:
		mode, err := obj.String("mode")
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		tool, err := obj.String("tool")
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		return BooleanParams{Mode: BooleanMode(mode), Tool: tool}, nil
	default:
		return nil, fmt.Errorf("unknown operation type %q", typ)
	}
}
