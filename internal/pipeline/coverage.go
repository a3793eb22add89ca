package pipeline

import "github.com/fairyhunter13/ai-resume-analyzer/internal/domain"

// Coverage scores how much of the profile the extraction filled in.
// Required fields carry double weight; the returned missing list names
// only the empty required fields, since those are what the gap filler
// can act on.
func Coverage(rec domain.ExtractionRecord) (float64, []string) {
	fields := []struct {
		name     string
		weight   float64
		required bool
		present  bool
	}{
		{"name", 2, true, rec.Name != ""},
		{"last_position", 2, true, rec.LastPosition != ""},
		{"last_company", 2, true, rec.LastCompany != ""},
		{"exp_years", 2, true, rec.ExpYears > 0},
		{"skills", 2, true, len(rec.Skills) > 0},
		{"phone", 1, false, rec.Phone != ""},
		{"email", 1, false, rec.Email != ""},
		{"address", 1, false, rec.Address != ""},
		{"careers", 1, false, len(rec.Careers) > 0},
		{"education", 1, false, len(rec.Education) > 0},
		{"projects", 1, false, len(rec.Projects) > 0},
		{"summary", 1, false, rec.Summary != ""},
	}

	var got, total float64
	var missing []string
	for _, f := range fields {
		total += f.weight
		switch {
		case f.present:
			got += f.weight
		case f.required:
			missing = append(missing, f.name)
		}
	}
	return got / total, missing
}

// MissingRequired lists the required fields the record leaves empty.
func MissingRequired(rec domain.ExtractionRecord) []string {
	var missing []string
	if rec.Name == "" {
		missing = append(missing, "name")
	}
	if rec.LastPosition == "" {
		missing = append(missing, "last_position")
	}
	if rec.LastCompany == "" {
		missing = append(missing, "last_company")
	}
	if rec.ExpYears <= 0 {
		missing = append(missing, "exp_years")
	}
	if len(rec.Skills) == 0 {
		missing = append(missing, "skills")
	}
	return missing
}
