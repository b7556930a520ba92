package program

import (
	"testing"
)

func TestParseDegree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		expect  Degree
		wantErr bool
	}{
		{input: "Master", expect: DegreeMaster},
		{input: " masters ", expect: DegreeMaster},
		{input: "Master's", expect: DegreeMaster},
		{input: "M.Sc", expect: DegreeMaster},
		{input: "Bachelor", expect: DegreeBachelor},
		{input: "undergraduate", expect: DegreeBachelor},
		{input: "PhD", expect: DegreePhD},
		{input: "Ph.D.", expect: DegreePhD},
		{input: "doctorate", expect: DegreePhD},
		{input: "", wantErr: true},
		{input: "diploma", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDegree(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("ParseDegree(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect float64
		ok     bool
	}{
		{input: "$61,990 per year", expect: 61990, ok: true},
		{input: "61990", expect: 61990, ok: true},
		{input: "USD 45,000/year", expect: 45000, ok: true},
		{input: "$55k", expect: 55000, ok: true},
		{input: "12,500.50", expect: 12500.5, ok: true},
		{input: "Contact school", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.input)
		if ok != tt.ok {
			t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.ok)
		}
		if ok && got != tt.expect {
			t.Fatalf("ParseAmount(%q) = %v, want %v", tt.input, got, tt.expect)
		}
	}
}

func TestParseGPA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect float64
		ok     bool
	}{
		{input: "3.5+", expect: 3.5, ok: true},
		{input: "CGPA 3.0 / 4.0", expect: 3.0, ok: true},
		{input: "3", expect: 3, ok: true},
		{input: "85%", ok: false},
		{input: "not specified", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseGPA(tt.input)
		if ok != tt.ok {
			t.Fatalf("ParseGPA(%q) ok = %v, want %v", tt.input, ok, tt.ok)
		}
		if ok && got != tt.expect {
			t.Fatalf("ParseGPA(%q) = %v, want %v", tt.input, got, tt.expect)
		}
	}
}

func TestParseEnglish(t *testing.T) {
	t.Parallel()

	scores := ParseEnglish("TOEFL iBT 100 / IELTS 7.0")
	if scores.TOEFL != 100 || scores.IELTS != 7 {
		t.Fatalf("unexpected scores: %+v", scores)
	}

	if min, ok := scores.Minimum(IELTS); !ok || min != 7 {
		t.Fatalf("unexpected IELTS minimum: %v %v", min, ok)
	}

	empty := ParseEnglish("not required")
	if _, ok := empty.Minimum(TOEFL); ok {
		t.Fatal("expected no TOEFL minimum")
	}
}

func TestRecordKeyDerivesNormalizedName(t *testing.T) {
	t.Parallel()

	rec := Record{University: " MIT ", Degree: DegreeMaster, Field: "Computer  Science"}
	key := rec.Key()
	want := Key{NormalizedName: "massachusetts institute of technology", Degree: DegreeMaster, Field: "computer science"}
	if key != want {
		t.Fatalf("Key() = %+v, want %+v", key, want)
	}

	if NewKey("mit", DegreeMaster, "COMPUTER SCIENCE") != want {
		t.Fatal("NewKey does not match record key")
	}
}

func TestRecordMergeKeepsExistingValues(t *testing.T) {
	t.Parallel()

	rec := Record{TuitionFee: "$50,000", Scholarships: "Merit based", DataYear: 2024}
	rec.Merge(Record{TuitionFee: "$52,000", DataYear: 2025})

	if rec.TuitionFee != "$52,000" {
		t.Fatalf("tuition not updated: %q", rec.TuitionFee)
	}
	if rec.Scholarships != "Merit based" {
		t.Fatalf("scholarships erased: %q", rec.Scholarships)
	}
	if rec.DataYear != 2025 {
		t.Fatalf("data year not updated: %d", rec.DataYear)
	}
}

func TestRecordComplete(t *testing.T) {
	t.Parallel()

	rec := Record{}
	for _, attr := range FetchAllAttributes {
		if rec.Complete() {
			t.Fatalf("record complete before %s was set", attr)
		}
		if err := rec.Set(attr, "value"); err != nil {
			t.Fatalf("set %s: %v", attr, err)
		}
	}
	if !rec.Complete() {
		t.Fatal("expected record to be complete")
	}

	if err := rec.Set("unknown", "x"); err == nil {
		t.Fatal("expected error for unknown attribute")
	}
}

func TestHasScholarship(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"":                         false,
		"None":                     false,
		"No scholarships offered":  false,
		"Merit: 50% tuition":       true,
		"Need-based aid available": true,
	}
	for input, want := range cases {
		if got := (Record{Scholarships: input}).HasScholarship(); got != want {
			t.Fatalf("HasScholarship(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestDetectQueryType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question string
		expect   QueryType
	}{
		{question: "What is the tuition?", expect: QueryTuition},
		{question: "How much are the fees", expect: QueryTuition},
		{question: "What English requirements apply?", expect: QueryEnglish},
		{question: "Minimum IELTS score", expect: QueryEnglish},
		{question: "Is the GRE required?", expect: QueryTests},
		{question: "what GPA do I need", expect: QueryGPA},
		{question: "When is the deadline for fall?", expect: QueryDeadlines},
		{question: "Are scholarships available?", expect: QueryScholarships},
		{question: "admission requirements", expect: QueryAdmission},
		{question: "How long is the program", expect: QueryDuration},
		{question: "world ranking", expect: QueryRanking},
		{question: "job placement rate", expect: QueryCareer},
		{question: "tell me about the campus", expect: QueryGeneral},
		{question: "", expect: QueryGeneral},
		{question: "progress report", expect: QueryGeneral},
	}

	for _, tt := range tests {
		if got := DetectQueryType(tt.question); got != tt.expect {
			t.Fatalf("DetectQueryType(%q) = %q, want %q", tt.question, got, tt.expect)
		}
	}
}

func TestRecordAnswers(t *testing.T) {
	t.Parallel()

	rec := Record{TuitionFee: "$10,000", GPARequirement: "3.0"}
	if !rec.Answers(QueryTuition) {
		t.Fatal("expected tuition to be answered")
	}
	if rec.Answers(QueryAdmission) {
		t.Fatal("admission needs english too")
	}
	if rec.Answers(QueryGeneral) {
		t.Fatal("general questions are never answered from stored fields")
	}
}
