package money

import (
	"errors"
	"testing"
)

func TestFromBaht(t *testing.T) {
	tests := []struct {
		name    string
		baht    float64
		want    int64
		wantErr bool
	}{
		{"whole baht", 1000, 100000, false},
		{"two decimals", 14.81, 1481, false},
		{"half rounds away from zero", 0.005, 1, false},
		{"negative half rounds away from zero", -0.005, -1, false},
		{"sub-satang truncates down", 0.004, 0, false},
		{"zero", 0, 0, false},
		{"float drift 250.00", 250.00, 25000, false},
		{"nan rejected", nan(), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromBaht(tt.baht)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromBaht(%v) error = %v, wantErr %v", tt.baht, err, tt.wantErr)
			}
			if err == nil && got.Satang() != tt.want {
				t.Errorf("FromBaht(%v) = %d, want %d", tt.baht, got.Satang(), tt.want)
			}
		})
	}
}

func nan() float64 {
	z := 0.0
	return z / z
}

func TestParseBaht(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"two decimals", "14.81", 1481, false},
		{"one decimal", "10.5", 1050, false},
		{"no decimals", "1000", 100000, false},
		{"leading dot", ".50", 50, false},
		{"three decimals round half up", "0.125", 13, false},
		{"three decimals round down", "0.124", 12, false},
		{"negative", "-7.25", -725, false},
		{"empty", "", 0, true},
		{"two dots", "1.2.3", 0, true},
		{"letters", "12a.00", 0, true},
		{"bare dot", ".", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBaht(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBaht(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got.Satang() != tt.want {
				t.Errorf("ParseBaht(%q) = %d, want %d", tt.in, got.Satang(), tt.want)
			}
		})
	}
}

func TestBahtString(t *testing.T) {
	tests := []struct {
		satang int64
		want   string
	}{
		{1481, "14.81"},
		{100000, "1000.00"},
		{5, "0.05"},
		{0, "0.00"},
		{-725, "-7.25"},
	}
	for _, tt := range tests {
		if got := FromSatang(tt.satang).BahtString(); got != tt.want {
			t.Errorf("FromSatang(%d).BahtString() = %q, want %q", tt.satang, got, tt.want)
		}
	}
}

func TestAddSub(t *testing.T) {
	a := FromSatang(1000)
	b := FromSatang(250)

	sum, err := a.Add(b)
	if err != nil || sum.Satang() != 1250 {
		t.Errorf("Add = %v, %v; want 1250, nil", sum, err)
	}

	diff, err := a.Sub(b)
	if err != nil || diff.Satang() != 750 {
		t.Errorf("Sub = %v, %v; want 750, nil", diff, err)
	}

	if _, err := FromSatang(1 << 62).Add(FromSatang(1 << 62)); !errors.Is(err, ErrOverflow) {
		t.Errorf("Add overflow error = %v, want ErrOverflow", err)
	}
}

func TestToMinorUnits(t *testing.T) {
	if _, err := ToMinorUnits(0); err == nil {
		t.Error("ToMinorUnits(0) should fail")
	}
	if _, err := ToMinorUnits(-100); err == nil {
		t.Error("ToMinorUnits(-100) should fail")
	}
	if _, err := ToMinorUnits(MaxGatewayAmount + 1); err == nil {
		t.Error("ToMinorUnits above maximum should fail")
	}
	got, err := ToMinorUnits(FromSatang(5000))
	if err != nil || got != 5000 {
		t.Errorf("ToMinorUnits(5000) = %d, %v; want 5000, nil", got, err)
	}
	if FromMinorUnits(2500).Baht() != 25.00 {
		t.Errorf("FromMinorUnits(2500).Baht() = %v, want 25", FromMinorUnits(2500).Baht())
	}
}
