package homework

import (
	"errors"
	"strings"
	"testing"
)

func TestTranslateKnownStatuses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status Status
		want   string
	}{
		{status: StatusRejected, want: "К сожалению в работе нашлись ошибки."},
		{status: StatusReviewing, want: "взята в ревью"},
		{status: StatusApproved, want: "Ревьюеру всё понравилось"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			got, err := Translate(Submission{Name: "hw_final", Status: tt.status})
			if err != nil {
				t.Fatalf("Translate error: %v", err)
			}
			if n := strings.Count(got, "hw_final"); n != 1 {
				t.Fatalf("name substituted %d times in %q", n, got)
			}
			if strings.Contains(got, namePlaceholder) {
				t.Fatalf("placeholder left in %q", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Fatalf("message %q does not contain %q", got, tt.want)
			}
			tmpl, _ := Template(tt.status)
			if got != strings.Replace(tmpl, namePlaceholder, "hw_final", 1) {
				t.Fatalf("message %q does not follow template %q", got, tmpl)
			}
		})
	}
}

func TestTemplatesHaveSinglePlaceholder(t *testing.T) {
	t.Parallel()
	for st, tmpl := range verdicts {
		if n := strings.Count(tmpl, namePlaceholder); n != 1 {
			t.Fatalf("template for %s has %d placeholders", st, n)
		}
	}
}

func TestTranslateUnexpectedStatus(t *testing.T) {
	t.Parallel()
	for _, st := range []Status{"", "accepted", "APPROVED", "rejected "} {
		msg, err := Translate(Submission{Name: "hw2", Status: st})
		if err == nil {
			t.Fatalf("Translate(%q) returned %q without error", st, msg)
		}
		if msg != "" {
			t.Fatalf("Translate(%q) returned message %q alongside error", st, msg)
		}
		var he *Error
		if !errors.As(err, &he) || he.Kind != KindUnexpectedStatus {
			t.Fatalf("Translate(%q) error = %v, want KindUnexpectedStatus", st, err)
		}
		if he.Name != "hw2" || he.Status != st {
			t.Fatalf("error context = %q/%q", he.Name, he.Status)
		}
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	wrapped := errors.Join(errors.New("ctx"), &Error{Kind: KindServerRefusal, Reason: "bad token"})
	if KindOf(wrapped) != KindServerRefusal {
		t.Fatalf("KindOf = %v", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("plain error should be KindUnknown")
	}
	if IsKind(nil, KindUnknown) {
		t.Fatal("nil error must not match any kind")
	}
}
