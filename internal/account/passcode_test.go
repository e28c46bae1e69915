package account

import (
	"strings"
	"testing"
)

func TestGeneratePasscode_LengthAndAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GeneratePasscode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != PasscodeLength {
			t.Fatalf("length = %d, want %d", len(code), PasscodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(PasscodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func TestPasscodeAlphabet_ExcludesAmbiguous(t *testing.T) {
	if strings.ContainsAny(PasscodeAlphabet, "O0") {
		t.Errorf("alphabet %q must exclude O and 0", PasscodeAlphabet)
	}
	if len(PasscodeAlphabet) != 34 {
		t.Errorf("alphabet size = %d, want 34", len(PasscodeAlphabet))
	}
}

func TestGeneratePasscode_Varies(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GeneratePasscode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("20 generated codes were all identical")
	}
}
