package record

import (
	"strings"
	"testing"
)

func TestValidateDetails(t *testing.T) {
	valid := CivilDetails{
		RegistrationNumber: "2024-PAR-000123",
		SubjectName:        "Lucie Martin",
		BirthDate:          "2024-02-29",
		BirthPlace:         "Paris",
	}

	cases := []struct {
		name   string
		mutate func(*CivilDetails)
		ok     bool
	}{
		{"valid", func(d *CivilDetails) {}, true},
		{"with parents", func(d *CivilDetails) { d.FatherName = "Paul Martin"; d.MotherName = "Claire Martin" }, true},
		{"registration number free-form", func(d *CivilDetails) { d.RegistrationNumber = "123" }, false},
		{"registration number lowercase office", func(d *CivilDetails) { d.RegistrationNumber = "2024-par-000123" }, false},
		{"missing subject", func(d *CivilDetails) { d.SubjectName = "" }, false},
		{"birth date not ISO", func(d *CivilDetails) { d.BirthDate = "29/02/2024" }, false},
		{"missing birth place", func(d *CivilDetails) { d.BirthPlace = "" }, false},
		{"oversized name", func(d *CivilDetails) { d.SubjectName = strings.Repeat("a", 300) }, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := valid
			c.mutate(&d)
			err := ValidateDetails(d)
			if c.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !c.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
