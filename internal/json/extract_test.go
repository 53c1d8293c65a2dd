package json

import (
	"strings"
	"testing"
)

type itemPosition struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func TestPureJSON(t *testing.T) {
	response := `{"name": "logs", "x": 42, "y": 7}`
	result, err := ExtractJSONFromResponse[itemPosition](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "logs" || result.X != 42 || result.Y != 7 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestJSONInCodeFence(t *testing.T) {
	response := "```json\n{\"name\": \"tinderbox\", \"x\": 1, \"y\": 2}\n```"
	result, err := ExtractJSONFromResponse[itemPosition](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "tinderbox" {
		t.Errorf("expected name 'tinderbox', got %q", result.Name)
	}
}

func TestJSONWithCommentary(t *testing.T) {
	response := `Looking at the inventory {"name": "logs", "x": 42, "y": 7} is my best answer.`
	result, err := ExtractJSONFromResponse[itemPosition](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.X != 42 {
		t.Errorf("expected x 42, got %d", result.X)
	}
}

func TestFirstOfTwoObjects(t *testing.T) {
	// The old first-'{' to last-'}' heuristic failed on this input.
	response := `{"name": "tinderbox", "x": 1, "y": 2} and also {"name": "logs", "x": 3, "y": 4}`
	result, err := ExtractJSONFromResponse[itemPosition](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "tinderbox" {
		t.Errorf("expected first object, got %+v", result)
	}
}

func TestBraceInsideString(t *testing.T) {
	response := `note {"name": "odd } name", "x": 5, "y": 6}`
	result, err := ExtractJSONFromResponse[itemPosition](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "odd } name" {
		t.Errorf("unexpected name %q", result.Name)
	}
}

func TestNoJSON(t *testing.T) {
	response := "The tinderbox is in the top-left slot."
	_, err := ExtractJSONFromResponse[itemPosition](response)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to extract valid JSON") {
		t.Errorf("expected 'failed to extract valid JSON' in error, got: %v", err)
	}
	if ContainsObject(response) {
		t.Error("ContainsObject should be false for plain text")
	}
}

func TestInvalidJSON(t *testing.T) {
	response := `{"name": "logs", x: }`
	if _, err := ExtractJSONFromResponse[itemPosition](response); err == nil {
		t.Fatal("expected error, got nil")
	}
}
