package backup

import "testing"

func TestCheckPasswordStrength_Buckets(t *testing.T) {
	cases := []struct {
		password string
		want     int
	}{
		{"", StrengthVeryWeak},
		{"password", StrengthVeryWeak},
		{"QWERTY", StrengthVeryWeak},
		{"aaaaaaaaaaaaaaaa", StrengthWeak},
		{"abcdefghijklmnop", StrengthWeak},
		{"dragonfly", StrengthWeak},
		{"hunter2hunter2", StrengthGood},
		{"correct horse battery", StrengthStrong},
		{"N0t-Quite-Random-But-Long!", StrengthStrong},
	}
	for _, tc := range cases {
		if got, _ := CheckPasswordStrength(tc.password); got != tc.want {
			t.Fatalf("CheckPasswordStrength(%q) = %d, want %d", tc.password, got, tc.want)
		}
	}
}

func TestCheckPasswordStrength_MonotoneInLengthAndMix(t *testing.T) {
	sequences := [][]string{
		{"dog", "dogsledge", "dogsledge-racing", "Dogsledge-Racing-42"},
		{"hunter", "hunter2hunter2", "Hunter2!Hunter2!"},
	}
	for _, seq := range sequences {
		prev := -1
		for _, password := range seq {
			got, _ := CheckPasswordStrength(password)
			if got < prev {
				t.Fatalf("score dropped from %d to %d at %q", prev, got, password)
			}
			prev = got
		}
	}
}

func TestCheckPasswordStrength_Advice(t *testing.T) {
	_, advice := CheckPasswordStrength("short")
	if len(advice) == 0 {
		t.Fatal("expected advice for a short single-class password")
	}

	score, advice := CheckPasswordStrength("N0t-Quite-Random-But-Long!")
	if score != StrengthStrong {
		t.Fatalf("score = %d, want %d", score, StrengthStrong)
	}
	if len(advice) != 0 {
		t.Fatalf("unexpected advice for a strong password: %v", advice)
	}
}
