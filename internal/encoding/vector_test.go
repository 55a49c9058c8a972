package encoding

import (
	"math"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "simple vector", vector: []float32{1.0, 2.0, 3.0}},
		{name: "empty vector", vector: []float32{}},
		{name: "negative values", vector: []float32{-1.5, 0.0, 2.5}},
		{name: "single element", vector: []float32{0.25}},
		{name: "large values", vector: []float32{math.MaxFloat32, -math.MaxFloat32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeVector(tt.vector)
			if err != nil {
				t.Fatalf("EncodeVector() error = %v", err)
			}

			decoded, err := DecodeVector(data)
			if err != nil {
				t.Fatalf("DecodeVector() error = %v", err)
			}

			if len(decoded) != len(tt.vector) {
				t.Fatalf("decoded length = %d, want %d", len(decoded), len(tt.vector))
			}
			for i := range tt.vector {
				if decoded[i] != tt.vector[i] {
					t.Errorf("decoded[%d] = %v, want %v", i, decoded[i], tt.vector[i])
				}
			}
		})
	}
}

func TestEncodeVectorNil(t *testing.T) {
	if _, err := EncodeVector(nil); err != ErrInvalidVector {
		t.Errorf("EncodeVector(nil) error = %v, want ErrInvalidVector", err)
	}
}

func TestDecodeVectorInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil data", data: nil},
		{name: "too short", data: []byte{1, 2}},
		{name: "negative length", data: []byte{0xff, 0xff, 0xff, 0xff}},
		{name: "truncated payload", data: []byte{2, 0, 0, 0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeVector(tt.data); err == nil {
				t.Error("DecodeVector() expected error, got nil")
			}
		})
	}
}

func TestValidateVector(t *testing.T) {
	tests := []struct {
		name    string
		vector  []float32
		wantErr bool
	}{
		{name: "valid", vector: []float32{1, 2, 3}, wantErr: false},
		{name: "nil", vector: nil, wantErr: true},
		{name: "empty", vector: []float32{}, wantErr: true},
		{name: "NaN", vector: []float32{1, float32(math.NaN())}, wantErr: true},
		{name: "positive infinity", vector: []float32{float32(math.Inf(1))}, wantErr: true},
		{name: "negative infinity", vector: []float32{float32(math.Inf(-1))}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(tt.vector)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVector() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
