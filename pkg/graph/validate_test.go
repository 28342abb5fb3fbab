package graph

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// buildValidMaterial creates a small valid graph: a slider feeding 1-x,
// multiplied by a second slider into Roughness, and a colour into Albedo.
func buildValidMaterial(t *testing.T) *System {
	t.Helper()
	s := NewSystem()
	root, err := s.SpawnMaterialNode()
	if err != nil {
		t.Fatal(err)
	}
	a := s.SpawnSliderNode()
	b := s.SpawnSliderNode()
	omx := s.SpawnOneMinusXNode()
	mul := s.SpawnMultiplyNode()
	col := s.SpawnColorNode()

	mustLink(t, s, b.Outputs[0], omx.Inputs[0])
	mustLink(t, s, a.Outputs[0], mul.Inputs[0])
	mustLink(t, s, omx.Outputs[0], mul.Inputs[1])
	mustLink(t, s, mul.Outputs[0], root.Inputs[ChannelRoughness])
	mustLink(t, s, col.Outputs[0], root.Inputs[ChannelAlbedo])
	return s
}

// injectLink bypasses Link so tests can build graphs the public API forbids.
func injectLink(s *System, start, end PinID) *Link {
	l := &Link{ID: LinkID(s.nextIdent()), Start: start, End: end}
	s.links[l.ID] = l
	return l
}

func findingsContaining(findings []ValidationError, substr string) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if strings.Contains(f.Message, substr) {
			out = append(out, f)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestValidateValidGraph(t *testing.T) {
	s := buildValidMaterial(t)
	if findings := Validate(s); len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

func TestValidateNoRoot(t *testing.T) {
	s := NewSystem()
	s.SpawnSliderNode()

	findings := Validate(s)
	if !HasErrors(findings) {
		t.Fatal("expected an error for a graph without root")
	}
	if len(findingsContaining(findings, "no material root")) != 1 {
		t.Errorf("findings = %v", findings)
	}
}

func TestValidateExtraRoot(t *testing.T) {
	s := buildValidMaterial(t)
	// Force a second root past the factory guard.
	extra := s.SpawnColorNode()
	extra.IsRoot = true

	got := findingsContaining(Validate(s), "extra material root")
	if len(got) != 1 || got[0].NodeID != extra.ID {
		t.Errorf("findings = %v", got)
	}
}

func TestValidateCycle(t *testing.T) {
	s := NewSystem()
	root, _ := s.SpawnMaterialNode()
	a := s.SpawnMultiplyNode()
	b := s.SpawnMultiplyNode()

	mustLink(t, s, a.Outputs[0], b.Inputs[0])
	mustLink(t, s, b.Outputs[0], root.Inputs[ChannelRoughness])
	injectLink(s, b.Outputs[0], a.Inputs[0])

	findings := Validate(s)
	if len(findingsContaining(findings, "cycle detected")) != 1 {
		t.Errorf("expected exactly one cycle finding, got %v", findings)
	}
}

func TestValidateMultipleIncoming(t *testing.T) {
	s := buildValidMaterial(t)
	root := s.Root()
	extra := s.SpawnColorNode()
	injectLink(s, extra.Outputs[0], root.Inputs[ChannelAlbedo])

	got := findingsContaining(Validate(s), "has 2 links")
	if len(got) != 1 || got[0].NodeID != root.ID {
		t.Errorf("findings = %v", got)
	}
}

func TestValidateMultipleIncomingOrder(t *testing.T) {
	s := buildValidMaterial(t)
	root := s.Root()
	for _, ch := range []Channel{ChannelEmission, ChannelNormal, ChannelMetallic, ChannelAlbedo} {
		injectLink(s, s.SpawnColorNode().Outputs[0], root.Inputs[ch])
		injectLink(s, s.SpawnColorNode().Outputs[0], root.Inputs[ch])
	}

	first := findingsContaining(Validate(s), " links")
	if len(first) != 4 {
		t.Fatalf("expected 4 multi-link findings, got %v", first)
	}
	want := []string{"Diffuse", "Normal", "Metallic", "Emissive"}
	for i, f := range first {
		if !strings.Contains(f.Message, want[i]) {
			t.Errorf("finding %d = %q, want input %s", i, f.Message, want[i])
		}
	}
	for range 20 {
		again := findingsContaining(Validate(s), " links")
		for i := range first {
			if again[i].Message != first[i].Message {
				t.Fatalf("finding order changed: %v vs %v", again, first)
			}
		}
	}
}

func TestValidateMisorderedLink(t *testing.T) {
	s := NewSystem()
	root, _ := s.SpawnMaterialNode()
	col := s.SpawnColorNode()
	injectLink(s, root.Inputs[ChannelAlbedo], col.Outputs[0])

	if len(findingsContaining(Validate(s), "not ordered output to input")) != 1 {
		t.Error("expected misordered link finding")
	}
}

func TestValidateDanglingLink(t *testing.T) {
	s := buildValidMaterial(t)
	injectLink(s, PinID(5000), s.Root().Inputs[ChannelNormal])

	if len(findingsContaining(Validate(s), "missing pin")) != 1 {
		t.Error("expected missing pin finding")
	}
}

func TestValidateDuplicateUUID(t *testing.T) {
	s := buildValidMaterial(t)
	nodes := s.Nodes()
	nodes[2].UUID = nodes[1].UUID

	got := findingsContaining(Validate(s), "already used")
	if len(got) != 1 || got[0].NodeID != nodes[2].ID {
		t.Errorf("findings = %v", got)
	}
}

func TestValidateOrphanIsWarning(t *testing.T) {
	s := buildValidMaterial(t)
	orphan := s.SpawnVector2Node()

	findings := Validate(s)
	if HasErrors(findings) {
		t.Errorf("orphans should not be errors: %v", findings)
	}
	got := findingsContaining(findings, "does not feed")
	if len(got) != 1 || got[0].NodeID != orphan.ID || got[0].Severity != SeverityWarning {
		t.Errorf("findings = %v", got)
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{NodeID: 3, Message: "boom", Severity: SeverityError}
	if got := e.Error(); got != "[error] node 3: boom" {
		t.Errorf("Error() = %q", got)
	}
	e = ValidationError{Message: "empty", Severity: SeverityWarning}
	if got := e.Error(); got != "[warning] empty" {
		t.Errorf("Error() = %q", got)
	}
}
