package model

import (
	"encoding/json"
	"testing"
)

// TestOptionalUnmarshal: три состояния nullable-поля различимы
// после декодирования JSON.
func TestOptionalUnmarshal(t *testing.T) {
	type doc struct {
		Notes  Optional[string] `json:"notes"`
		PDFURL Optional[string] `json:"pdf_url"`
	}

	tests := []struct {
		name      string
		body      string
		wantSet   bool
		wantValue *string
	}{
		{"поле отсутствует", `{}`, false, nil},
		{"явный null", `{"notes": null}`, true, nil},
		{"значение", `{"notes": "текст"}`, true, strPtr("текст")},
		{"пустая строка", `{"notes": ""}`, true, strPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d doc
			if err := json.Unmarshal([]byte(tt.body), &d); err != nil {
				t.Fatalf("Unmarshal(%s) ошибка: %v", tt.body, err)
			}
			if d.Notes.Set != tt.wantSet {
				t.Errorf("Set = %v, ожидается %v", d.Notes.Set, tt.wantSet)
			}
			if (d.Notes.Value == nil) != (tt.wantValue == nil) {
				t.Fatalf("Value = %v, ожидается %v", d.Notes.Value, tt.wantValue)
			}
			if tt.wantValue != nil && *d.Notes.Value != *tt.wantValue {
				t.Errorf("Value = %q, ожидается %q", *d.Notes.Value, *tt.wantValue)
			}
			// Незатронутое поле остаётся «не задано»
			if d.PDFURL.Set {
				t.Error("PDFURL.Set = true для отсутствующего поля")
			}
		})
	}
}

func TestOptionalConstructors(t *testing.T) {
	v := OptionalOf(int64(42))
	if !v.Set || v.Value == nil || *v.Value != 42 {
		t.Errorf("OptionalOf(42) = %+v, ожидается заданное значение", v)
	}

	n := OptionalNull[int64]()
	if !n.Set || n.Value != nil {
		t.Errorf("OptionalNull() = %+v, ожидается явный null", n)
	}
}

func strPtr(s string) *string { return &s }
