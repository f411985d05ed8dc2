package paths

import (
	"testing"
)

func TestResolveCollisions_NoCollisions(t *testing.T) {
	targets := []Target{
		{ID: 1, Name: "a.png", LocalPath: "/dest/a.png"},
		{ID: 2, Name: "b.png", LocalPath: "/dest/b.png"},
	}

	result, count := ResolveCollisions(targets)

	if count != 0 {
		t.Errorf("expected 0 collisions, got %d", count)
	}
	if result[0].LocalPath != "/dest/a.png" || result[1].LocalPath != "/dest/b.png" {
		t.Errorf("paths changed: %+v", result)
	}
}

func TestResolveCollisions_Duplicates(t *testing.T) {
	targets := []Target{
		{ID: 12, Name: "output.png", LocalPath: "/dest/output.png"},
		{ID: 3, Name: "other.png", LocalPath: "/dest/other.png"},
		{ID: 15, Name: "output.png", LocalPath: "/dest/output.png"},
	}

	result, count := ResolveCollisions(targets)

	if count != 2 {
		t.Errorf("expected 2 collisions, got %d", count)
	}
	if result[0].LocalPath != "/dest/output_12.png" {
		t.Errorf("expected /dest/output_12.png, got %s", result[0].LocalPath)
	}
	if result[1].LocalPath != "/dest/other.png" {
		t.Errorf("expected /dest/other.png, got %s", result[1].LocalPath)
	}
	if result[2].LocalPath != "/dest/output_15.png" {
		t.Errorf("expected /dest/output_15.png, got %s", result[2].LocalPath)
	}
}

func TestResolveCollisions_NoExtension(t *testing.T) {
	targets := []Target{
		{ID: 7, Name: "README", LocalPath: "/dest/README"},
		{ID: 8, Name: "README", LocalPath: "/dest/README"},
	}

	result, _ := ResolveCollisions(targets)

	if result[0].LocalPath != "/dest/README_7" || result[1].LocalPath != "/dest/README_8" {
		t.Errorf("unexpected paths: %+v", result)
	}
}

func TestResolveCollisions_Empty(t *testing.T) {
	result, count := ResolveCollisions(nil)
	if len(result) != 0 || count != 0 {
		t.Errorf("expected empty result, got %v, %d", result, count)
	}
}
