package syncengine

import "testing"

func TestCheckProtocolCompatibilityAllowsEmptyOrMatchingMajor(t *testing.T) {
	if err := checkProtocolCompatibility(""); err != nil {
		t.Errorf("empty server version should be allowed (predates the header): %v", err)
	}
	if err := checkProtocolCompatibility("1.4.2"); err != nil {
		t.Errorf("same major version should be compatible: %v", err)
	}
}

func TestCheckProtocolCompatibilityRejectsMajorMismatch(t *testing.T) {
	if err := checkProtocolCompatibility("v2.0.0"); err == nil {
		t.Fatal("expected ErrProtocolIncompatible for a differing major version")
	}
}
