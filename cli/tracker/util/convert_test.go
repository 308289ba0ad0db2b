package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    float64
		wantErr bool
	}{
		{"float64", 55.75, 55.75, false},
		{"int64", int64(3), 3, false},
		{"bytes from mysql", []byte("37.61"), 37.61, false},
		{"string", "1.5", 1.5, false},
		{"bool", true, 0, true},
		{"nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToFloat64(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToNullFloat64(t *testing.T) {
	got, err := ToNullFloat64(nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = ToNullFloat64(int64(7))
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, 7.0, *got)
	}
}

func TestToInt64(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   interface{}
		want    int64
		wantErr bool
	}{
		{"int64", int64(1714557600000), 1714557600000, false},
		{"int", 5, 5, false},
		{"float64", float64(12), 12, false},
		{"bytes", []byte("42"), 42, false},
		{"time", ts, ts.UnixMilli(), false},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInt64(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
	}{
		{"time with zone", want.In(time.FixedZone("MSK", 3*3600))},
		{"rfc3339 string", "2024-05-01T10:00:00Z"},
		{"mysql bytes", []byte("2024-05-01 10:00:00")},
		{"millis", want.UnixMilli()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToTime(tt.value)
			assert.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}

	zero, err := ToTime(nil)
	assert.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ToTime("yesterday")
	assert.Error(t, err)
}

func TestToString(t *testing.T) {
	s, err := ToString([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, "abc", s)

	s, err = ToString(nil)
	assert.NoError(t, err)
	assert.Equal(t, "", s)

	_, err = ToString(3.5)
	assert.Error(t, err)
}
