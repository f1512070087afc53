package identity

import "testing"

func TestBuildMerchantToken(t *testing.T) {
	tests := []struct {
		name    string
		group   int64
		site    int64
		store   int64
		menu    int64
		want    string
		wantErr bool
	}{
		{"zero padded", 1, 10, 100, 1000, "00100100001000001000", false},
		{"all zero", 0, 0, 0, 0, "00000000000000000000", false},
		{"max widths", 999, 9999, 999999, 9999999, "99999999999999999999", false},
		{"group overflow", 1000, 0, 0, 0, "", true},
		{"site overflow", 0, 10000, 0, 0, "", true},
		{"store overflow", 0, 0, 1000000, 0, "", true},
		{"menu overflow", 0, 0, 0, 10000000, "", true},
		{"negative", -1, 0, 0, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildMerchantToken(tt.group, tt.site, tt.store, tt.menu)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildMerchantToken error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Errorf("BuildMerchantToken = %q, want %q", got, tt.want)
			}
			if len(got) != TokenLength {
				t.Errorf("token length = %d, want %d", len(got), TokenLength)
			}

			// Deterministic across calls.
			again, _ := BuildMerchantToken(tt.group, tt.site, tt.store, tt.menu)
			if again != got {
				t.Errorf("token not deterministic: %q vs %q", got, again)
			}
		})
	}
}

func TestDeriveBillerID(t *testing.T) {
	tests := []struct {
		name     string
		taxID    string
		override string
		want     string
		wantErr  bool
	}{
		{"tax id gets 99 suffix", "0000000000001", "", "000000000000199", false},
		{"formatted tax id", "0-1055-43000-91-1", "", "010554300091199", false},
		{"long tax id truncates from left", "12345678901234567", "", "567890123456799", false},
		{"override wins", "0000000000001", "123456789012345", "123456789012345", false},
		{"short override padded", "", "42", "000000000000042", false},
		{"override with punctuation", "", "1-2345-6789", "000000123456789", false},
		{"no digits anywhere", "abc", "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveBillerID(tt.taxID, tt.override)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveBillerID error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("DeriveBillerID = %q, want %q", got, tt.want)
			}
			if err == nil && len(got) != BillerIDLength {
				t.Errorf("biller id length = %d, want %d", len(got), BillerIDLength)
			}
		})
	}
}

func TestValidToken(t *testing.T) {
	if !ValidToken("00100100000100000001") {
		t.Error("valid 20-digit token rejected")
	}
	for _, bad := range []string{"", "123", "0010010000010000000a", "001001000001000000011"} {
		if ValidToken(bad) {
			t.Errorf("ValidToken(%q) = true, want false", bad)
		}
	}
}
