package classify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maypok86/otter/v2"
)

// ErrInvalidPath is returned by Classify when the path matches no known
// Route variant. Wrapped with the offending path for diagnostics.
type ErrInvalidPath struct {
	Path string
}

func (e *ErrInvalidPath) Error() string {
	return fmt.Sprintf("classify: no route matches path %q", e.Path)
}

// Normalise extracts the optional "/api[/vN]" prefix from a raw request
// path. If present, apiPrefix is "/api/vN" and trimmed is what follows;
// otherwise apiPrefix is "/api" and trimmed is the path with any leading
// "/api" removed (or the path unchanged if it didn't have one).
func Normalise(requestPath string) (apiPrefix, trimmed string) {
	rest, ok := strings.CutPrefix(requestPath, "/api")
	if !ok {
		return "/api", requestPath
	}

	segs := strings.SplitN(rest, "/", 3)
	// segs[0] is "" only when rest starts with "/"; otherwise the path merely
	// begins with "/api" (e.g. "/apix/v1") and carries no version prefix.
	if len(segs) >= 2 && segs[0] == "" {
		if v, ok := strings.CutPrefix(segs[1], "v"); ok {
			if _, err := strconv.ParseUint(v, 10, 8); err == nil {
				prefixLen := len("/api/v") + len(v)
				return requestPath[:prefixLen], requestPath[prefixLen:]
			}
		}
	}
	return "/api", rest
}

// Classifier classifies normalised paths into Route variants, memoising the
// (method, path) -> Route mapping since the same hot routes repeat
// constantly and classification is pure given its input.
type Classifier struct {
	cache *otter.Cache[string, Route]
}

// New returns a Classifier with a bounded memoisation cache.
func New() *Classifier {
	c, err := otter.New(&otter.Options[string, Route]{MaximumSize: 4096})
	if err != nil {
		// otter.New only fails on invalid Options; our Options are static
		// and known-valid, so this branch is unreachable in practice.
		panic(fmt.Sprintf("classify: build memo cache: %v", err))
	}
	return &Classifier{cache: c}
}

// Classify maps a method and normalised (trimmed) path to a Route. Method is
// accepted for interface symmetry with the upstream contract and future
// method-sensitive variants, but path structure alone currently determines
// the Route.
func (c *Classifier) Classify(method Method, trimmed string) (Route, error) {
	key := method.String() + " " + trimmed
	if r, ok := c.cache.GetIfPresent(key); ok {
		return r, nil
	}
	r, err := classifyPath(trimmed)
	if err != nil {
		return Route{}, err
	}
	c.cache.Set(key, r)
	return r, nil
}

func segments(trimmed string) []string {
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// classifyPath matches path segments against the closed set of upstream
// route families. Unknown shapes return ErrInvalidPath.
func classifyPath(trimmed string) (Route, error) {
	seg := segments(trimmed)
	if len(seg) == 0 {
		return Route{}, &ErrInvalidPath{Path: trimmed}
	}

	switch seg[0] {
	case "applications":
		return classifyApplications(seg, trimmed)
	case "interactions":
		if len(seg) == 4 && seg[3] == "callback" {
			return Route{Kind: RouteInteractionCallback, IDs: []string{seg[1], seg[2]}}, nil
		}
	case "channels":
		return classifyChannels(seg, trimmed)
	case "gateway":
		if len(seg) == 1 {
			return Route{Kind: RouteGateway}, nil
		}
		if len(seg) == 2 && seg[1] == "bot" {
			return Route{Kind: RouteGatewayBot}, nil
		}
	case "guilds":
		return classifyGuilds(seg, trimmed)
	case "invites":
		if len(seg) == 2 {
			return Route{Kind: RouteInvitesCode, IDs: []string{seg[1]}}, nil
		}
	case "oauth2":
		if len(seg) == 3 && seg[1] == "applications" && seg[2] == "@me" {
			return Route{Kind: RouteOauthApplicationsMe}, nil
		}
	case "stage-instances":
		return Route{Kind: RouteStageInstances, IDs: idsFrom(seg[1:])}, nil
	case "sticker-packs":
		return Route{Kind: RouteStickerPacks, IDs: idsFrom(seg[1:])}, nil
	case "stickers":
		return Route{Kind: RouteStickers, IDs: idsFrom(seg[1:])}, nil
	case "users":
		return classifyUsers(seg, trimmed)
	case "voice":
		if len(seg) == 2 && seg[1] == "regions" {
			return Route{Kind: RouteVoiceRegions}, nil
		}
	case "webhooks":
		return classifyWebhooks(seg, trimmed)
	}

	return Route{}, &ErrInvalidPath{Path: trimmed}
}

func idsFrom(seg []string) []string {
	if len(seg) == 0 {
		return nil
	}
	out := make([]string, len(seg))
	copy(out, seg)
	return out
}

func classifyApplications(seg []string, trimmed string) (Route, error) {
	// /applications/{app_id}/commands[/...]
	// /applications/{app_id}/guilds/{guild_id}/commands[/...]
	if len(seg) >= 3 && seg[2] == "commands" {
		switch len(seg) {
		case 3:
			return Route{Kind: RouteApplicationCommand, IDs: []string{seg[1]}}, nil
		case 4:
			return Route{Kind: RouteApplicationCommandID, IDs: []string{seg[1], seg[3]}}, nil
		}
	}
	if len(seg) >= 5 && seg[2] == "guilds" && seg[4] == "commands" {
		switch len(seg) {
		case 5:
			return Route{Kind: RouteApplicationGuildCommand, IDs: []string{seg[1], seg[3]}}, nil
		case 6:
			return Route{Kind: RouteApplicationGuildCommandID, IDs: []string{seg[1], seg[3], seg[5]}}, nil
		}
	}
	return Route{}, &ErrInvalidPath{Path: trimmed}
}

func classifyChannels(seg []string, trimmed string) (Route, error) {
	if len(seg) < 2 {
		return Route{}, &ErrInvalidPath{Path: trimmed}
	}
	id := seg[1]
	if len(seg) == 2 {
		return Route{Kind: RouteChannelsID, IDs: []string{id}}, nil
	}

	switch seg[2] {
	case "followers":
		return Route{Kind: RouteChannelsIDFollowers, IDs: []string{id}}, nil
	case "invites":
		return Route{Kind: RouteChannelsIDInvites, IDs: []string{id}}, nil
	case "messages":
		return classifyChannelMessages(seg, id, trimmed)
	case "permissions":
		if len(seg) == 4 {
			return Route{Kind: RouteChannelsIDPermissionsOverwriteID, IDs: []string{id, seg[3]}}, nil
		}
	case "pins":
		if len(seg) == 3 {
			return Route{Kind: RouteChannelsIDPins, IDs: []string{id}}, nil
		}
		if len(seg) == 4 {
			return Route{Kind: RouteChannelsIDPinsMessageID, IDs: []string{id, seg[3]}}, nil
		}
	case "recipients":
		return Route{Kind: RouteChannelsIDRecipients, IDs: []string{id}}, nil
	case "thread-members":
		return Route{Kind: RouteChannelsIDThreadMembers, IDs: []string{id}}, nil
	case "threads":
		return Route{Kind: RouteChannelsIDThreads, IDs: []string{id}}, nil
	case "typing":
		return Route{Kind: RouteChannelsIDTyping, IDs: []string{id}}, nil
	case "webhooks":
		return Route{Kind: RouteChannelsIDWebhooks, IDs: []string{id}}, nil
	}
	return Route{}, &ErrInvalidPath{Path: trimmed}
}

func classifyChannelMessages(seg []string, channelID, trimmed string) (Route, error) {
	if len(seg) == 3 {
		return Route{Kind: RouteChannelsIDMessages, IDs: []string{channelID}}, nil
	}
	if len(seg) == 4 && seg[3] == "bulk-delete" {
		return Route{Kind: RouteChannelsIDMessagesBulkDelete, IDs: []string{channelID}}, nil
	}
	msgID := seg[3]
	if len(seg) == 4 {
		return Route{Kind: RouteChannelsIDMessagesID, IDs: []string{channelID, msgID}}, nil
	}
	switch seg[4] {
	case "crosspost":
		return Route{Kind: RouteChannelsIDMessagesIDCrosspost, IDs: []string{channelID, msgID}}, nil
	case "threads":
		return Route{Kind: RouteChannelsIDMessagesIDThreads, IDs: []string{channelID, msgID}}, nil
	case "reactions":
		if len(seg) == 5 {
			return Route{Kind: RouteChannelsIDMessagesIDReactions, IDs: []string{channelID, msgID}}, nil
		}
		// .../reactions/{emoji}[/{user_id|"@me"}]
		return Route{Kind: RouteChannelsIDMessagesIDReactionsUserIDType, IDs: []string{channelID, msgID}}, nil
	}
	return Route{}, &ErrInvalidPath{Path: trimmed}
}

func classifyGuilds(seg []string, trimmed string) (Route, error) {
	if len(seg) == 1 {
		return Route{Kind: RouteGuilds}, nil
	}
	if seg[1] == "templates" {
		if len(seg) == 3 {
			return Route{Kind: RouteGuildsTemplatesCode, IDs: []string{seg[2]}}, nil
		}
		return Route{}, &ErrInvalidPath{Path: trimmed}
	}

	id := seg[1]
	if len(seg) == 2 {
		return Route{Kind: RouteGuildsID, IDs: []string{id}}, nil
	}

	switch seg[2] {
	case "audit-logs":
		return Route{Kind: RouteGuildsIDAuditLogs, IDs: []string{id}}, nil
	case "bans":
		if len(seg) == 3 {
			return Route{Kind: RouteGuildsIDBans, IDs: []string{id}}, nil
		}
		return Route{Kind: RouteGuildsIDBansUserID, IDs: []string{id, seg[3]}}, nil
	case "channels":
		return Route{Kind: RouteGuildsIDChannels, IDs: []string{id}}, nil
	case "emojis":
		if len(seg) == 3 {
			return Route{Kind: RouteGuildsIDEmojis, IDs: []string{id}}, nil
		}
		return Route{Kind: RouteGuildsIDEmojisID, IDs: []string{id, seg[3]}}, nil
	case "integrations":
		switch len(seg) {
		case 3:
			return Route{Kind: RouteGuildsIDIntegrations, IDs: []string{id}}, nil
		case 4:
			return Route{Kind: RouteGuildsIDIntegrationsID, IDs: []string{id, seg[3]}}, nil
		case 5:
			if seg[4] == "sync" {
				return Route{Kind: RouteGuildsIDIntegrationsIDSync, IDs: []string{id, seg[3]}}, nil
			}
		}
	case "invites":
		return Route{Kind: RouteGuildsIDInvites, IDs: []string{id}}, nil
	case "members":
		return classifyGuildMembers(seg, id, trimmed)
	case "preview":
		return Route{Kind: RouteGuildsIDPreview, IDs: []string{id}}, nil
	case "prune":
		return Route{Kind: RouteGuildsIDPrune, IDs: []string{id}}, nil
	case "regions":
		return Route{Kind: RouteGuildsIDRegions, IDs: []string{id}}, nil
	case "roles":
		if len(seg) == 3 {
			return Route{Kind: RouteGuildsIDRoles, IDs: []string{id}}, nil
		}
		return Route{Kind: RouteGuildsIDRolesID, IDs: []string{id, seg[3]}}, nil
	case "scheduled-events":
		switch len(seg) {
		case 3:
			return Route{Kind: RouteGuildsIDScheduledEvents, IDs: []string{id}}, nil
		case 4:
			return Route{Kind: RouteGuildsIDScheduledEventsID, IDs: []string{id, seg[3]}}, nil
		case 5:
			if seg[4] == "users" {
				return Route{Kind: RouteGuildsIDScheduledEventsIDUsers, IDs: []string{id, seg[3]}}, nil
			}
		}
	case "stickers":
		return Route{Kind: RouteGuildsIDStickers, IDs: []string{id}}, nil
	case "templates":
		if len(seg) == 3 {
			return Route{Kind: RouteGuildsIDTemplates, IDs: []string{id}}, nil
		}
		return Route{Kind: RouteGuildsIDTemplatesCode, IDs: []string{id, seg[3]}}, nil
	case "threads":
		return Route{Kind: RouteGuildsIDThreads, IDs: []string{id}}, nil
	case "vanity-url":
		return Route{Kind: RouteGuildsIDVanityURL, IDs: []string{id}}, nil
	case "voice-states":
		return Route{Kind: RouteGuildsIDVoiceStates, IDs: []string{id}}, nil
	case "webhooks":
		return Route{Kind: RouteGuildsIDWebhooks, IDs: []string{id}}, nil
	case "welcome-screen":
		return Route{Kind: RouteGuildsIDWelcomeScreen, IDs: []string{id}}, nil
	case "widget", "widget.json", "widget.png":
		return Route{Kind: RouteGuildsIDWidget, IDs: []string{id}}, nil
	}
	return Route{}, &ErrInvalidPath{Path: trimmed}
}

func classifyGuildMembers(seg []string, guildID, trimmed string) (Route, error) {
	if len(seg) == 3 {
		return Route{Kind: RouteGuildsIDMembers, IDs: []string{guildID}}, nil
	}
	if seg[3] == "search" && len(seg) == 4 {
		return Route{Kind: RouteGuildsIDMembersSearch, IDs: []string{guildID}}, nil
	}
	if seg[3] == "@me" && len(seg) == 5 && seg[4] == "nick" {
		return Route{Kind: RouteGuildsIDMembersMeNick, IDs: []string{guildID}}, nil
	}
	memberID := seg[3]
	if len(seg) == 4 {
		return Route{Kind: RouteGuildsIDMembersID, IDs: []string{guildID, memberID}}, nil
	}
	if len(seg) == 6 && seg[4] == "roles" {
		return Route{Kind: RouteGuildsIDMembersIDRolesID, IDs: []string{guildID, memberID, seg[5]}}, nil
	}
	return Route{}, &ErrInvalidPath{Path: trimmed}
}

func classifyUsers(seg []string, trimmed string) (Route, error) {
	if len(seg) < 2 {
		return Route{}, &ErrInvalidPath{Path: trimmed}
	}
	id := seg[1]
	if len(seg) == 2 {
		return Route{Kind: RouteUsersID, IDs: []string{id}}, nil
	}
	switch seg[2] {
	case "channels":
		return Route{Kind: RouteUsersIDChannels, IDs: []string{id}}, nil
	case "connections":
		return Route{Kind: RouteUsersIDConnections, IDs: []string{id}}, nil
	case "guilds":
		if len(seg) == 3 {
			return Route{Kind: RouteUsersIDGuilds, IDs: []string{id}}, nil
		}
		if len(seg) == 4 {
			return Route{Kind: RouteUsersIDGuildsID, IDs: []string{id, seg[3]}}, nil
		}
		if len(seg) == 5 && seg[4] == "member" {
			return Route{Kind: RouteUsersIDGuildsIDMember, IDs: []string{id, seg[3]}}, nil
		}
	}
	return Route{}, &ErrInvalidPath{Path: trimmed}
}

func classifyWebhooks(seg []string, trimmed string) (Route, error) {
	if len(seg) < 2 {
		return Route{}, &ErrInvalidPath{Path: trimmed}
	}
	id := seg[1]
	if len(seg) == 2 {
		return Route{Kind: RouteWebhooksID, IDs: []string{id}}, nil
	}
	token := seg[2]
	if len(seg) == 3 {
		return Route{Kind: RouteWebhooksIDToken, IDs: []string{id, token}}, nil
	}
	if len(seg) >= 5 && seg[3] == "messages" {
		return Route{Kind: RouteWebhooksIDTokenMessagesID, IDs: []string{id, token, seg[4]}}, nil
	}
	if len(seg) == 4 && (seg[3] == "slack" || seg[3] == "github") {
		return Route{Kind: RouteWebhooksIDToken, IDs: []string{id, token}}, nil
	}
	return Route{}, &ErrInvalidPath{Path: trimmed}
}
