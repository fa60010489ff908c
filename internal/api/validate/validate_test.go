package validate

import (
	"strings"
	"testing"
)

func TestVaultName(t *testing.T) {
	for _, v := range []string{"", "north-bridge", "Drop 7", "a"} {
		if err := VaultName(v); err != nil {
			t.Fatalf("VaultName(%q): %v", v, err)
		}
	}
	for _, v := range []string{"  lead", "trail ", "two  spaces", "emojiéé?!", strings.Repeat("x", 51)} {
		if err := VaultName(v); err == nil {
			t.Fatalf("VaultName(%q): expected error", v)
		}
	}
}

func TestEmail(t *testing.T) {
	if err := Email("a@b.co"); err != nil {
		t.Fatalf("Email valid: %v", err)
	}
	for _, v := range []string{"", "no-at", "a@b", "sp ace@b.co"} {
		if err := Email(v); err == nil {
			t.Fatalf("Email(%q): expected error", v)
		}
	}
}

func TestLatitudeLongitude(t *testing.T) {
	if v, err := Latitude("40.5"); err != nil || v != 40.5 {
		t.Fatalf("Latitude: v=%v err=%v", v, err)
	}
	for _, raw := range []string{"", "abc", "91", "-90.1"} {
		if _, err := Latitude(raw); err == nil {
			t.Fatalf("Latitude(%q): expected error", raw)
		}
	}
	if v, err := Longitude("-179.9"); err != nil || v != -179.9 {
		t.Fatalf("Longitude: v=%v err=%v", v, err)
	}
	for _, raw := range []string{"", "abc", "181", "-180.5"} {
		if _, err := Longitude(raw); err == nil {
			t.Fatalf("Longitude(%q): expected error", raw)
		}
	}
}

func TestNonNegativeInt(t *testing.T) {
	if v, err := NonNegativeInt("limit", "", 5); err != nil || v != 5 {
		t.Fatalf("default: v=%v err=%v", v, err)
	}
	if v, err := NonNegativeInt("limit", "12", 5); err != nil || v != 12 {
		t.Fatalf("parsed: v=%v err=%v", v, err)
	}
	for _, raw := range []string{"-1", "abc", "1.5"} {
		if _, err := NonNegativeInt("limit", raw, 5); err == nil {
			t.Fatalf("NonNegativeInt(%q): expected error", raw)
		}
	}
}
