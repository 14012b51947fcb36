package prank

import (
	"strings"
	"testing"
)

func TestLinkRoundTrip(t *testing.T) {
	p := Params{Recipient: "Sam & Alex", Message: "Knew it", Question: "Pizza, %s?", SessionID: "abc-123"}
	link := p.Link("https://sayyes.example/")
	if !strings.HasPrefix(link, "https://sayyes.example/?") {
		t.Fatalf("link = %s", link)
	}
	got, err := ParseLink(link)
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Fatalf("round trip: got %+v want %+v", got, p)
	}
}

func TestParseLinkDefaults(t *testing.T) {
	cases := []struct {
		raw  string
		want Params
	}{
		{"", Params{Message: DefaultMessage, Question: DefaultQuestion}},
		{"to=Sam", Params{Recipient: "Sam", Message: DefaultMessage, Question: DefaultQuestion}},
		{"?to=Sam&sid=x#frag", Params{Recipient: "Sam", SessionID: "x", Message: DefaultMessage, Question: DefaultQuestion}},
		{"https://h/p?to=%20Sam%20&msg=", Params{Recipient: "Sam", Message: DefaultMessage, Question: DefaultQuestion}},
	}
	for _, tc := range cases {
		got, err := ParseLink(tc.raw)
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %+v want %+v", tc.raw, got, tc.want)
		}
	}
	if _, err := ParseLink("to=%zz"); err == nil {
		t.Fatal("expected error for bad escape")
	}
}

func TestDefaultsAreLeftOutOfLinks(t *testing.T) {
	link := Params{Recipient: "Sam", Message: DefaultMessage, Question: DefaultQuestion}.Link("")
	if link != "?to=Sam" {
		t.Fatalf("link = %s", link)
	}
}

func TestPrompt(t *testing.T) {
	if got := (Params{Recipient: "Sam", Question: DefaultQuestion}).Prompt(); got != "Will you be my Valentine, Sam?" {
		t.Fatalf("prompt = %q", got)
	}
	if got := (Params{}).Prompt(); got != "Will you be my Valentine, cutie?" {
		t.Fatalf("prompt = %q", got)
	}
	if got := (Params{Recipient: "Sam", Question: "100% sure?"}).Prompt(); got != "100% sure?" {
		t.Fatalf("prompt = %q", got)
	}
}
