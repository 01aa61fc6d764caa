package v1

import (
	"errors"
	"testing"
)

func TestDecode_MessageEvent(t *testing.T) {
	t.Parallel()

	ev, err := Decode[MessageEvent]([]byte(`{"action":"CREATE","id":5,"text":"hi","chatId":9}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.EventAction() != ActionCreate {
		t.Fatalf("action=%q want CREATE", ev.EventAction())
	}
	m := ev.Entity()
	if m.ID != 5 || m.Text != "hi" || m.ChatID != 9 {
		t.Fatalf("unexpected entity: %+v", m)
	}
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want error
	}{
		{name: "empty", body: ``, want: ErrMalformedFrame},
		{name: "not json", body: `hello`, want: ErrMalformedFrame},
		{name: "missing action", body: `{"id":1}`, want: ErrMalformedFrame},
		{name: "missing id", body: `{"action":"DELETE"}`, want: ErrMalformedFrame},
		{name: "wrong id type", body: `{"action":"DELETE","id":"x"}`, want: ErrMalformedFrame},
		{name: "unknown action", body: `{"action":"PATCH","id":1}`, want: ErrUnknownAction},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode[ChatEvent]([]byte(tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Decode(%q) err=%v want=%v", tc.body, err, tc.want)
			}
		})
	}
}

func TestTopicTemplates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tpl   TopicTemplate
		scope string
		want  string
	}{
		{tpl: ChatsTopic, scope: "bob", want: "/topic/chats/bob"},
		{tpl: ContactsTopic, scope: "bob", want: "/topic/contacts/bob"},
		{tpl: SentRequestsTopic, scope: "bob", want: "/topic/sent_requests/bob"},
		{tpl: ReceivedRequestsTopic, scope: "bob", want: "/topic/received_requests/bob"},
		{tpl: MessagesTopic, scope: "42", want: "/topic/secured/chats/42/messages"},
	}

	for _, tc := range cases {
		got, err := tc.tpl.For(tc.scope)
		if err != nil {
			t.Fatalf("For(%q): %v", tc.scope, err)
		}
		if got != tc.want {
			t.Fatalf("For(%q)=%q want=%q", tc.scope, got, tc.want)
		}
		if k := KindOf(got); k != tc.tpl.Kind {
			t.Fatalf("KindOf(%q)=%q want=%q", got, k, tc.tpl.Kind)
		}
	}

	if _, err := ChatsTopic.For("  "); !errors.Is(err, ErrEmptyScope) {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
	if _, err := ChatsTopic.For("a/b"); err == nil {
		t.Fatalf("expected error for scope containing '/'")
	}
	if _, err := MessagesTopic.ForID(0); !errors.Is(err, ErrEmptyScope) {
		t.Fatalf("expected ErrEmptyScope for id 0, got %v", err)
	}
}

func TestMessageDestinations(t *testing.T) {
	t.Parallel()

	got, err := MessageCreateDestination(7)
	if err != nil || got != "/app/chats/7/messages/create" {
		t.Fatalf("create=%q err=%v", got, err)
	}
	got, err = MessageUpdateDestination(7, 3)
	if err != nil || got != "/app/chats/7/messages/3/update" {
		t.Fatalf("update=%q err=%v", got, err)
	}
	got, err = MessageDeleteDestination(7, 3)
	if err != nil || got != "/app/chats/7/messages/3/destroy" {
		t.Fatalf("delete=%q err=%v", got, err)
	}
	if _, err := MessageDeleteDestination(7, 0); !errors.Is(err, ErrEmptyScope) {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
}
