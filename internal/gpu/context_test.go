//go:build !nogpu

package gpu

import (
	"errors"
	"testing"
)

func TestNewContextNilDevice(t *testing.T) {
	if _, err := NewContext(nil, "x"); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewContext(nil) error = %v, want ErrNilDevice", err)
	}
	if _, err := NewContext(&Device{}, "x"); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewContext(empty) error = %v, want ErrNilDevice", err)
	}
}

func TestContextRecordSubmit(t *testing.T) {
	d := newNoopDevice(t)
	c, err := NewContext(d, "test")
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	defer c.Destroy()

	if c.Device() != d {
		t.Error("Device() should return the shared device")
	}
	if _, err := c.Submit(); err == nil {
		t.Error("Submit without Begin should fail")
	}

	if _, err := c.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := c.Begin(); err == nil {
		t.Error("second Begin should fail while recording")
	}
	f, err := c.Submit()
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if f.Index() == 0 {
		t.Error("fence index should be non-zero")
	}
	if c.InFlight() != 1 {
		t.Errorf("InFlight = %d, want 1", c.InFlight())
	}

	// The noop queue has finished everything, so the next Begin reclaims.
	if _, err := c.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if c.InFlight() != 0 {
		t.Errorf("InFlight after reclaim = %d, want 0", c.InFlight())
	}
	c.Discard()

	if _, err := c.Begin(); err != nil {
		t.Fatalf("Begin after Discard failed: %v", err)
	}
	c.Discard()
}

func TestContextDestroy(t *testing.T) {
	d := newNoopDevice(t)
	c, err := NewContext(d, "test")
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	if _, err := c.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := c.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	c.Destroy()
	if c.InFlight() != 0 {
		t.Errorf("InFlight after Destroy = %d, want 0", c.InFlight())
	}
	// Double-destroy should be safe.
	c.Destroy()
}

func TestContextsShareDevice(t *testing.T) {
	d := newNoopDevice(t)
	scene, err := NewContext(d, "scene")
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	defer scene.Destroy()
	warp, err := NewContext(d, "warp")
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	defer warp.Destroy()

	done := make(chan Fence)
	go func() {
		var last Fence
		for range 50 {
			if _, err := scene.Begin(); err != nil {
				t.Errorf("scene Begin: %v", err)
				break
			}
			f, err := scene.Submit()
			if err != nil {
				t.Errorf("scene Submit: %v", err)
				break
			}
			last = f
		}
		done <- last
	}()
	for range 50 {
		if _, err := warp.Begin(); err != nil {
			t.Fatalf("warp Begin: %v", err)
		}
		if _, err := warp.Submit(); err != nil {
			t.Fatalf("warp Submit: %v", err)
		}
	}
	last := <-done
	if !last.Signalled() {
		t.Error("scene fence should be signalled on the noop queue")
	}
}
