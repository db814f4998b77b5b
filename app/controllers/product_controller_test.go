package controllers

import (
	"reflect"
	"testing"

	"github.com/vitrine-app/vitrine/app/models"
)

func TestRemovedImagesDiff(t *testing.T) {
	tests := []struct {
		name   string
		before []string
		after  []string
		want   []string
	}{
		{
			name:   "replaced gallery",
			before: []string{"a.jpg", "b.jpg"},
			after:  []string{"b.jpg", "c.jpg"},
			want:   []string{"a.jpg"},
		},
		{
			name:   "nothing removed",
			before: []string{"a.jpg"},
			after:  []string{"a.jpg"},
			want:   nil,
		},
		{
			name:   "empty entries skipped",
			before: []string{"", "a.jpg"},
			after:  nil,
			want:   []string{"a.jpg"},
		},
		{
			name:   "duplicates collapse to one cleanup",
			before: []string{"a.jpg", "a.jpg", "b.jpg"},
			after:  []string{"b.jpg"},
			want:   []string{"a.jpg"},
		},
	}

	for _, tt := range tests {
		got := removedImages(tt.before, tt.after)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s: removedImages = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRemovedImagesCoversNormalizedTail(t *testing.T) {
	submitted := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}

	p := models.Product{Images: append([]string(nil), submitted...)}
	p.NormalizeImages()

	got := removedImages(submitted, p.Images)
	want := []string{"d.jpg", "e.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("removedImages = %v, want %v", got, want)
	}
}
