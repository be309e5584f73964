package classify

import "testing"

func TestNormalise(t *testing.T) {
	cases := []struct {
		path       string
		wantPrefix string
		wantTrim   string
	}{
		{"/api/v10/foo", "/api/v10", "/foo"},
		{"/api/foo", "/api", "/foo"},
		{"/foo", "/api", "/foo"},
		{"/api/v2/guilds/1/bans/2", "/api/v2", "/guilds/1/bans/2"},
		{"/api/vx/foo", "/api", "/vx/foo"},
	}
	for _, c := range cases {
		prefix, trimmed := Normalise(c.path)
		if prefix != c.wantPrefix || trimmed != c.wantTrim {
			t.Errorf("Normalise(%q) = (%q, %q), want (%q, %q)", c.path, prefix, trimmed, c.wantPrefix, c.wantTrim)
		}
	}
}

func TestClassify(t *testing.T) {
	c := New()
	cases := []struct {
		path string
		kind RouteKind
		ids  []string
	}{
		{"/invites/ABCD", RouteInvitesCode, []string{"ABCD"}},
		{"/users/@me", RouteUsersID, []string{"@me"}},
		{"/users/123", RouteUsersID, []string{"123"}},
		{"/channels/123/messages/456", RouteChannelsIDMessagesID, []string{"123", "456"}},
		{"/guilds/1/bans/2", RouteGuildsIDBansUserID, []string{"1", "2"}},
		{"/webhooks/1/tok", RouteWebhooksIDToken, []string{"1", "tok"}},
		{"/gateway", RouteGateway, nil},
	}
	for _, tc := range cases {
		r, err := c.Classify(MethodGet, tc.path)
		if err != nil {
			t.Fatalf("Classify(%q) error: %v", tc.path, err)
		}
		if r.Kind != tc.kind {
			t.Errorf("Classify(%q).Kind = %v, want %v", tc.path, r.Kind, tc.kind)
		}
	}
}

func TestClassifyInvalid(t *testing.T) {
	c := New()
	if _, err := c.Classify(MethodGet, "/not/a/real/route/at/all"); err == nil {
		t.Fatal("expected error for unknown path")
	}
}

func TestMajorParams(t *testing.T) {
	r := Route{Kind: RouteChannelsIDMessagesID, IDs: []string{"1", "2"}}
	if got := MajorParams(r); len(got) != 1 || got[0] != "1" {
		t.Errorf("MajorParams = %v, want [1]", got)
	}
	r2 := Route{Kind: RouteUsersID, IDs: []string{"1"}}
	if got := MajorParams(r2); got != nil {
		t.Errorf("MajorParams(UsersID) = %v, want nil", got)
	}
}

func TestBucketKeyDistinguishesMajorParams(t *testing.T) {
	a := Route{Kind: RouteChannelsIDMessagesID, IDs: []string{"1", "100"}}
	b := Route{Kind: RouteChannelsIDMessagesID, IDs: []string{"2", "200"}}
	if NewBucketKey(a) == NewBucketKey(b) {
		t.Fatal("routes with different channel ids must not share a bucket")
	}
	c := Route{Kind: RouteChannelsIDMessagesID, IDs: []string{"1", "999"}}
	if NewBucketKey(a) != NewBucketKey(c) {
		t.Fatal("routes with the same channel id but different message id must share a bucket")
	}
}
