package store

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"What is Go?":   "what is go?",
		"  trimmed  ":   "trimmed",
		"ALREADY LOWER": "already lower",
		"":               "",
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestQuestionRecordHasAnswer(t *testing.T) {
	if (QuestionRecord{}).HasAnswer() {
		t.Error("zero-value record should not have an answer")
	}
	if !(QuestionRecord{Answer: "yes"}).HasAnswer() {
		t.Error("record with a non-empty answer should report HasAnswer")
	}
}
