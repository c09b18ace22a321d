package document

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/regen/internal/ir"
)

// File is the YAML form of a document.
//
//	id: bracket
//	base_bodies: [stock]
//	applied: 2            # optional, defaults to every operation
//	sketches:
//	  s1:
//	    z: 0
//	    regions:
//	      - [[0, 0], [10, 0], [10, 10], [0, 10]]
//	operations:
//	  - id: pad
//	    type: extrude
//	    input: {sketch: s1, region: 0}
//	    params: {distance: 5}
//	    result: [body1]
//	  - id: round
//	    type: fillet
//	    input: {body: body1, face: pad/face-1}
//	    params: {radius: 1}
//	    result: [body1]
//	    suppressed: true
type File struct {
	ID         string                `yaml:"id"`
	BaseBodies []string              `yaml:"base_bodies,omitempty"`
	Applied    *int                  `yaml:"applied,omitempty"`
	Sketches   map[string]SketchFile `yaml:"sketches,omitempty"`
	Operations []OperationFile       `yaml:"operations"`
}

// SketchFile is the YAML form of a sketch.
type SketchFile struct {
	Z       float64        `yaml:"z"`
	Regions [][][2]float64 `yaml:"regions"`
}

// OperationFile is the YAML form of one operation record.
type OperationFile struct {
	ID         string     `yaml:"id"`
	Type       string     `yaml:"type"`
	Input      InputFile  `yaml:"input"`
	Params     ParamsFile `yaml:"params"`
	Result     []string   `yaml:"result"`
	Suppressed bool       `yaml:"suppressed,omitempty"`
}

// InputFile selects exactly one input variant:
// {sketch, region}, {body, face} or {body}.
type InputFile struct {
	Sketch string `yaml:"sketch,omitempty"`
	Region int    `yaml:"region,omitempty"`
	Body   string `yaml:"body,omitempty"`
	Face   string `yaml:"face,omitempty"`
}

// ParamsFile is the union of every parameter field; only the fields of
// the operation's type are read.
type ParamsFile struct {
	Distance  float64 `yaml:"distance,omitempty"`
	Angle     float64 `yaml:"angle,omitempty"`
	Radius    float64 `yaml:"radius,omitempty"`
	Thickness float64 `yaml:"thickness,omitempty"`
	Mode      string  `yaml:"mode,omitempty"`
	Tool      string  `yaml:"tool,omitempty"`
}

// LoadYAML reads and decodes a YAML document file.
func LoadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// DecodeYAML decodes a document, rejecting unknown fields.
func DecodeYAML(data []byte) (*Document, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f.Build()
}

// Build converts the file form into a Document.
func (f File) Build() (*Document, error) {
	if f.ID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	d := New(f.ID)
	for _, b := range f.BaseBodies {
		if err := d.AddBaseBody(b); err != nil {
			return nil, err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(f.Sketches)) {
		s := f.Sketches[id]
		if err := d.AddSketch(id, Sketch{Z: s.Z, Regions: s.Regions}); err != nil {
			return nil, err
		}
	}
	for i, op := range f.Operations {
		rec, err := op.Record()
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		if err := d.Append(rec); err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		if op.Suppressed {
			if err := d.Suppress(rec.ID, true); err != nil {
				return nil, err
			}
		}
	}
	if f.Applied != nil {
		if err := d.SetAppliedCount(*f.Applied); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Record converts the file form into an operation record.
func (op OperationFile) Record() (ir.OperationRecord, error) {
	rec := ir.OperationRecord{ID: op.ID, ResultBodies: op.Result}

	in, err := op.Input.Ref()
	if err != nil {
		return rec, fmt.Errorf("op %s: %w", op.ID, err)
	}
	rec.Input = in

	params, err := op.Params.For(ir.OpType(op.Type))
	if err != nil {
		return rec, fmt.Errorf("op %s: %w", op.ID, err)
	}
	rec.Params = params
	return rec, nil
}

// Ref converts the file form into an input reference.
func (in InputFile) Ref() (ir.InputRef, error) {
	switch {
	case in.Sketch != "":
		if in.Body != "" || in.Face != "" {
			return nil, fmt.Errorf("input: sketch inputs take no body or face")
		}
		return ir.SketchRegionRef{Sketch: in.Sketch, Region: in.Region}, nil
	case in.Face != "":
		if in.Body == "" {
			return nil, fmt.Errorf("input: face %q needs a body", in.Face)
		}
		return ir.FaceRef{Body: in.Body, Element: ir.ElementID(in.Face)}, nil
	case in.Body != "":
		return ir.BodyRef{Body: in.Body}, nil
	default:
		return nil, fmt.Errorf("input: one of sketch, face or body is required")
	}
}

// For builds the parameter variant of typ.
func (p ParamsFile) For(typ ir.OpType) (ir.Params, error) {
	switch typ {
	case ir.OpExtrude:
		return ir.ExtrudeParams{Distance: p.Distance}, nil
	case ir.OpRevolve:
		return ir.RevolveParams{AngleDeg: p.Angle}, nil
	case ir.OpFillet:
		return ir.FilletParams{Radius: p.Radius}, nil
	case ir.OpChamfer:
		return ir.ChamferParams{Distance: p.Distance}, nil
	case ir.OpShell:
		return ir.ShellParams{Thickness: p.Thickness}, nil
	case ir.OpBoolean:
		return ir.BooleanParams{Mode: ir.BooleanMode(p.Mode), Tool: p.Tool}, nil
	default:
		return nil, fmt.Errorf("unknown operation type %q", typ)
	}
}

// FileOf converts a document back to its file form.
func FileOf(d *Document) File {
	f := File{ID: d.ID, BaseBodies: d.BaseBodies()}
	applied := d.AppliedCount()
	if applied != d.Len() {
		f.Applied = &applied
	}
	for _, id := range d.SketchIDs() {
		if f.Sketches == nil {
			f.Sketches = make(map[string]SketchFile)
		}
		s := d.sketches[id]
		f.Sketches[id] = SketchFile{Z: s.Z, Regions: s.Regions}
	}
	for _, rec := range d.ops {
		op := OperationFile{
			ID:         rec.ID,
			Type:       string(rec.Type()),
			Result:     rec.ResultBodies,
			Suppressed: d.suppressed[rec.ID],
		}
		switch in := rec.Input.(type) {
		case ir.SketchRegionRef:
			op.Input = InputFile{Sketch: in.Sketch, Region: in.Region}
		case ir.FaceRef:
			op.Input = InputFile{Body: in.Body, Face: string(in.Element)}
		case ir.BodyRef:
			op.Input = InputFile{Body: in.Body}
		}
		switch p := rec.Params.(type) {
		case ir.ExtrudeParams:
			op.Params.Distance = p.Distance
		case ir.RevolveParams:
			op.Params.Angle = p.AngleDeg
		case ir.FilletParams:
			op.Params.Radius = p.Radius
		case ir.ChamferParams:
			op.Params.Distance = p.Distance
		case ir.ShellParams:
			op.Params.Thickness = p.Thickness
		case ir.BooleanParams:
			op.Params.Mode = string(p.Mode)
			op.Params.Tool = p.Tool
		}
		f.Operations = append(f.Operations, op)
	}
	return f
}

// EncodeYAML renders d in the YAML form DecodeYAML reads.
func EncodeYAML(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(FileOf(d)); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
