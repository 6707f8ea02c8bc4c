package testutil

import (
	"reflect"
	"strings"
	"testing"
)

func TestJS(t *testing.T) {
	tests := map[string]struct {
		arg  interface{}
		want string
	}{
		"fact": {
			arg:  map[string]interface{}{"systemKey": "rec.sword"},
			want: `{"systemKey":"rec.sword"}`,
		},
		"answers": {
			arg: []struct {
				QuestionID string   `json:"questionId"`
				Selected   []string `json:"selectedOptions"`
			}{{"q1", []string{"Y"}}},
			want: `[{"questionId":"q1","selectedOptions":["Y"]}]`,
		},
		"nil": {
			arg:  nil,
			want: `null`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := JS(tc.arg); got != tc.want {
				t.Errorf("JS() = %v, want %v", got, tc.want)
			}
		})
	}

	if got := JS(make(chan int)); !strings.HasPrefix(got, "!") {
		t.Errorf("JS(chan) = %v", got)
	}
}

func TestDwimjs(t *testing.T) {
	tests := map[string]struct {
		arg  interface{}
		want interface{}
	}{
		"string": {
			arg:  `{"questionId":"q1","selectedOptions":["Y"]}`,
			want: map[string]interface{}{"questionId": "q1", "selectedOptions": []interface{}{"Y"}},
		},
		"bytes": {
			arg:  []byte(`{"score":1}`),
			want: map[string]interface{}{"score": float64(1)},
		},
		"not JSON": {
			arg:  "rec.sword",
			want: "rec.sword",
		},
		"other": {
			arg:  12345,
			want: 12345,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := Dwimjs(tc.arg); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Dwimjs() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMaps(t *testing.T) {
	got := Maps(`[{"id":"q1"},{"systemKey":"rec.sword"}]`)
	if len(got) != 2 || got[1]["systemKey"] != "rec.sword" {
		t.Errorf("Maps() = %v", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Maps should panic on bad JSON")
		}
	}()
	Maps(`{"id":"q1"}`)
}
