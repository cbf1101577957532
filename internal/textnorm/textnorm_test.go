package textnorm

import "testing"

func TestNormalizeStripsDiacritics(t *testing.T) {
	cases := map[string]string{
		"Tiểu học":          "tieu hoc",
		"Trung học Cơ sở":   "trung hoc co so",
		"  Đà   Nẵng  ":     "da nang",
		"TOÁN":              "toan",
		"already plain":     "already plain",
		"":                  "",
		"Ngữ Văn\t(nâng cao)": "ngu van (nang cao)",
	}

	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"Tiểu học", "Trung học Phổ thông", "  mixed   CASE  đĐ ", "123 - abc"}
	for _, input := range inputs {
		once := Normalize(input)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestAlnumKey(t *testing.T) {
	cases := map[string]string{
		"Mã học sinh":  "mahocsinh",
		"ma_hoc_sinh":  "mahocsinh",
		"Student-Code": "studentcode",
		"curriculum ":  "curriculum",
		"__":           "",
	}

	for input, want := range cases {
		if got := AlnumKey(input); got != want {
			t.Fatalf("AlnumKey(%q) = %q, want %q", input, got, want)
		}
	}
}
