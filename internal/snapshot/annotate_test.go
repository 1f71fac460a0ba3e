//go:build opencv

package snapshot

import (
	"image"
	"os"
	"testing"

	"gocv.io/x/gocv"
)

func TestAnnotateLeavesFrameUntouched(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	img, err := Annotate(frame, []Label{
		{Rect: image.Rect(10, 2, 60, 50), Text: "person 0.91", ClassID: 0},
		{Rect: image.Rect(80, 40, 150, 110), ClassID: 16},
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 120 {
		t.Errorf("Expected 160x120 image, got %v", img.Bounds())
	}
	flat := frame.Reshape(1, 0)
	defer flat.Close()
	if n := gocv.CountNonZero(flat); n != 0 {
		t.Errorf("Expected source frame to stay black, found %d lit values", n)
	}

	r, g, b, _ := img.At(10, 25).RGBA()
	if r == 0 && g == 0 && b == 0 {
		t.Error("Expected box edge to be drawn")
	}
}

func TestSaveMat(t *testing.T) {
	w := NewWriter(t.TempDir(), 0)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	path, err := w.SaveMat(frame, 9, []Label{{Rect: image.Rect(4, 4, 20, 20), Text: "bird"}})
	if err != nil {
		t.Fatalf("SaveMat failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected snapshot at %s: %v", path, err)
	}
}
