// Package classify normalises inbound request paths and maps them onto the
// closed set of upstream Route variants, deriving the major-parameter subset
// each variant needs for rate-limit bucketing.
package classify

import "strings"

// Method is the subset of HTTP methods the upstream accepts.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPut
	MethodPost
	MethodPatch
	MethodDelete
)

// ParseMethod maps a raw HTTP method string to Method, or MethodUnknown if
// unsupported.
func ParseMethod(raw string) Method {
	switch strings.ToUpper(raw) {
	case "GET":
		return MethodGet
	case "PUT":
		return MethodPut
	case "POST":
		return MethodPost
	case "PATCH":
		return MethodPatch
	case "DELETE":
		return MethodDelete
	default:
		return MethodUnknown
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPut:
		return "PUT"
	case MethodPost:
		return "POST"
	case MethodPatch:
		return "PATCH"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// RouteKind enumerates the closed set of upstream endpoint families. The set
// is defined by the upstream, not by this proxy; adding a variant here must
// come with a majorParamIndex entry if any of its ids is major.
type RouteKind int

const (
	RouteInvalid RouteKind = iota

	RouteApplicationCommand
	RouteApplicationCommandID
	RouteApplicationGuildCommand
	RouteApplicationGuildCommandID
	RouteInteractionCallback

	RouteChannelsID
	RouteChannelsIDFollowers
	RouteChannelsIDInvites
	RouteChannelsIDMessages
	RouteChannelsIDMessagesID
	RouteChannelsIDMessagesBulkDelete
	RouteChannelsIDMessagesIDCrosspost
	RouteChannelsIDMessagesIDReactions
	RouteChannelsIDMessagesIDReactionsUserIDType
	RouteChannelsIDMessagesIDThreads
	RouteChannelsIDPermissionsOverwriteID
	RouteChannelsIDPins
	RouteChannelsIDPinsMessageID
	RouteChannelsIDRecipients
	RouteChannelsIDThreadMembers
	RouteChannelsIDThreads
	RouteChannelsIDTyping
	RouteChannelsIDWebhooks

	RouteGateway
	RouteGatewayBot

	RouteGuilds
	RouteGuildsID
	RouteGuildsIDAuditLogs
	RouteGuildsIDBans
	RouteGuildsIDBansID
	RouteGuildsIDBansUserID
	RouteGuildsIDChannels
	RouteGuildsIDEmojis
	RouteGuildsIDEmojisID
	RouteGuildsIDIntegrations
	RouteGuildsIDIntegrationsID
	RouteGuildsIDIntegrationsIDSync
	RouteGuildsIDInvites
	RouteGuildsIDMembers
	RouteGuildsIDMembersID
	RouteGuildsIDMembersIDRolesID
	RouteGuildsIDMembersMeNick
	RouteGuildsIDMembersSearch
	RouteGuildsIDPreview
	RouteGuildsIDPrune
	RouteGuildsIDRegions
	RouteGuildsIDRoles
	RouteGuildsIDRolesID
	RouteGuildsIDScheduledEvents
	RouteGuildsIDScheduledEventsID
	RouteGuildsIDScheduledEventsIDUsers
	RouteGuildsIDStickers
	RouteGuildsIDTemplates
	RouteGuildsIDTemplatesCode
	RouteGuildsIDThreads
	RouteGuildsIDVanityURL
	RouteGuildsIDVoiceStates
	RouteGuildsIDWebhooks
	RouteGuildsIDWelcomeScreen
	RouteGuildsIDWidget
	RouteGuildsTemplatesCode

	RouteInvitesCode

	RouteOauthApplicationsMe

	RouteStageInstances
	RouteStickerPacks
	RouteStickers

	RouteUsersID
	RouteUsersIDChannels
	RouteUsersIDConnections
	RouteUsersIDGuilds
	RouteUsersIDGuildsID
	RouteUsersIDGuildsIDMember

	RouteVoiceRegions

	RouteWebhooksID
	RouteWebhooksIDToken
	RouteWebhooksIDTokenMessagesID
)

var routeNames = map[RouteKind]string{
	RouteInvalid:                                  "Invalid",
	RouteApplicationCommand:                       "ApplicationCommand",
	RouteApplicationCommandID:                     "ApplicationCommandID",
	RouteApplicationGuildCommand:                  "ApplicationGuildCommand",
	RouteApplicationGuildCommandID:                "ApplicationGuildCommandID",
	RouteInteractionCallback:                      "InteractionCallback",
	RouteChannelsID:                                "ChannelsID",
	RouteChannelsIDFollowers:                      "ChannelsIDFollowers",
	RouteChannelsIDInvites:                        "ChannelsIDInvites",
	RouteChannelsIDMessages:                       "ChannelsIDMessages",
	RouteChannelsIDMessagesID:                     "ChannelsIDMessagesID",
	RouteChannelsIDMessagesBulkDelete:             "ChannelsIDMessagesBulkDelete",
	RouteChannelsIDMessagesIDCrosspost:            "ChannelsIDMessagesIDCrosspost",
	RouteChannelsIDMessagesIDReactions:            "ChannelsIDMessagesIDReactions",
	RouteChannelsIDMessagesIDReactionsUserIDType:  "ChannelsIDMessagesIDReactionsUserIDType",
	RouteChannelsIDMessagesIDThreads:              "ChannelsIDMessagesIDThreads",
	RouteChannelsIDPermissionsOverwriteID:         "ChannelsIDPermissionsOverwriteID",
	RouteChannelsIDPins:                           "ChannelsIDPins",
	RouteChannelsIDPinsMessageID:                  "ChannelsIDPinsMessageID",
	RouteChannelsIDRecipients:                     "ChannelsIDRecipients",
	RouteChannelsIDThreadMembers:                  "ChannelsIDThreadMembers",
	RouteChannelsIDThreads:                        "ChannelsIDThreads",
	RouteChannelsIDTyping:                         "ChannelsIDTyping",
	RouteChannelsIDWebhooks:                       "ChannelsIDWebhooks",
	RouteGateway:                                  "Gateway",
	RouteGatewayBot:                               "GatewayBot",
	RouteGuilds:                                   "Guilds",
	RouteGuildsID:                                 "GuildsID",
	RouteGuildsIDAuditLogs:                        "GuildsIDAuditLogs",
	RouteGuildsIDBans:                             "GuildsIDBans",
	RouteGuildsIDBansID:                           "GuildsIDBansID",
	RouteGuildsIDBansUserID:                       "GuildsIDBansUserID",
	RouteGuildsIDChannels:                         "GuildsIDChannels",
	RouteGuildsIDEmojis:                           "GuildsIDEmojis",
	RouteGuildsIDEmojisID:                         "GuildsIDEmojisID",
	RouteGuildsIDIntegrations:                     "GuildsIDIntegrations",
	RouteGuildsIDIntegrationsID:                   "GuildsIDIntegrationsID",
	RouteGuildsIDIntegrationsIDSync:               "GuildsIDIntegrationsIDSync",
	RouteGuildsIDInvites:                          "GuildsIDInvites",
	RouteGuildsIDMembers:                          "GuildsIDMembers",
	RouteGuildsIDMembersID:                        "GuildsIDMembersID",
	RouteGuildsIDMembersIDRolesID:                 "GuildsIDMembersIDRolesID",
	RouteGuildsIDMembersMeNick:                    "GuildsIDMembersMeNick",
	RouteGuildsIDMembersSearch:                    "GuildsIDMembersSearch",
	RouteGuildsIDPreview:                          "GuildsIDPreview",
	RouteGuildsIDPrune:                            "GuildsIDPrune",
	RouteGuildsIDRegions:                          "GuildsIDRegions",
	RouteGuildsIDRoles:                            "GuildsIDRoles",
	RouteGuildsIDRolesID:                          "GuildsIDRolesID",
	RouteGuildsIDScheduledEvents:                  "GuildsIDScheduledEvents",
	RouteGuildsIDScheduledEventsID:                "GuildsIDScheduledEventsID",
	RouteGuildsIDScheduledEventsIDUsers:           "GuildsIDScheduledEventsIDUsers",
	RouteGuildsIDStickers:                         "GuildsIDStickers",
	RouteGuildsIDTemplates:                        "GuildsIDTemplates",
	RouteGuildsIDTemplatesCode:                    "GuildsIDTemplatesCode",
	RouteGuildsIDThreads:                          "GuildsIDThreads",
	RouteGuildsIDVanityURL:                        "GuildsIDVanityURL",
	RouteGuildsIDVoiceStates:                      "GuildsIDVoiceStates",
	RouteGuildsIDWebhooks:                         "GuildsIDWebhooks",
	RouteGuildsIDWelcomeScreen:                    "GuildsIDWelcomeScreen",
	RouteGuildsIDWidget:                           "GuildsIDWidget",
	RouteGuildsTemplatesCode:                      "GuildsTemplatesCode",
	RouteInvitesCode:                              "InvitesCode",
	RouteOauthApplicationsMe:                      "OauthApplicationsMe",
	RouteStageInstances:                           "StageInstances",
	RouteStickerPacks:                             "StickerPacks",
	RouteStickers:                                 "Stickers",
	RouteUsersID:                                  "UsersID",
	RouteUsersIDChannels:                          "UsersIDChannels",
	RouteUsersIDConnections:                       "UsersIDConnections",
	RouteUsersIDGuilds:                            "UsersIDGuilds",
	RouteUsersIDGuildsID:                          "UsersIDGuildsID",
	RouteUsersIDGuildsIDMember:                    "UsersIDGuildsIDMember",
	RouteVoiceRegions:                             "VoiceRegions",
	RouteWebhooksID:                               "WebhooksID",
	RouteWebhooksIDToken:                          "WebhooksIDToken",
	RouteWebhooksIDTokenMessagesID:                "WebhooksIDTokenMessagesID",
}

func (k RouteKind) String() string {
	if name, ok := routeNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Route is a classified endpoint: its Kind plus the ids captured from the
// URL, in the order they appear in the path.
type Route struct {
	Kind RouteKind
	IDs  []string
}

// majorParamIndex maps a RouteKind to the positional indices (into Route.IDs)
// of the ids that are "major" for bucketing, per the upstream's rate-limit
// contract: channel-scoped, guild-scoped, and webhook-token-scoped routes
// carry a major id; routes like UsersID carry none.
var majorParamIndex = map[RouteKind][]int{
	RouteChannelsID:                               {0},
	RouteChannelsIDFollowers:                      {0},
	RouteChannelsIDInvites:                        {0},
	RouteChannelsIDMessages:                       {0},
	RouteChannelsIDMessagesID:                     {0},
	RouteChannelsIDMessagesBulkDelete:             {0},
	RouteChannelsIDMessagesIDCrosspost:            {0},
	RouteChannelsIDMessagesIDReactions:            {0},
	RouteChannelsIDMessagesIDReactionsUserIDType:  {0},
	RouteChannelsIDMessagesIDThreads:              {0},
	RouteChannelsIDPermissionsOverwriteID:         {0},
	RouteChannelsIDPins:                           {0},
	RouteChannelsIDPinsMessageID:                  {0},
	RouteChannelsIDRecipients:                     {0},
	RouteChannelsIDThreadMembers:                  {0},
	RouteChannelsIDThreads:                        {0},
	RouteChannelsIDTyping:                         {0},
	RouteChannelsIDWebhooks:                       {0},

	RouteGuildsID:                       {0},
	RouteGuildsIDAuditLogs:              {0},
	RouteGuildsIDBans:                   {0},
	RouteGuildsIDBansID:                 {0},
	RouteGuildsIDBansUserID:             {0},
	RouteGuildsIDChannels:               {0},
	RouteGuildsIDEmojis:                 {0},
	RouteGuildsIDEmojisID:               {0},
	RouteGuildsIDIntegrations:           {0},
	RouteGuildsIDIntegrationsID:         {0},
	RouteGuildsIDIntegrationsIDSync:     {0},
	RouteGuildsIDInvites:                {0},
	RouteGuildsIDMembers:                {0},
	RouteGuildsIDMembersID:              {0},
	RouteGuildsIDMembersIDRolesID:       {0},
	RouteGuildsIDMembersMeNick:          {0},
	RouteGuildsIDMembersSearch:          {0},
	RouteGuildsIDPreview:                {0},
	RouteGuildsIDPrune:                  {0},
	RouteGuildsIDRegions:                {0},
	RouteGuildsIDRoles:                  {0},
	RouteGuildsIDRolesID:                {0},
	RouteGuildsIDScheduledEvents:        {0},
	RouteGuildsIDScheduledEventsID:      {0},
	RouteGuildsIDScheduledEventsIDUsers: {0},
	RouteGuildsIDStickers:               {0},
	RouteGuildsIDTemplates:              {0},
	RouteGuildsIDTemplatesCode:          {0},
	RouteGuildsIDThreads:                {0},
	RouteGuildsIDVanityURL:              {0},
	RouteGuildsIDVoiceStates:            {0},
	RouteGuildsIDWebhooks:               {0},
	RouteGuildsIDWelcomeScreen:          {0},
	RouteGuildsIDWidget:                 {0},

	RouteWebhooksIDToken:           {0},
	RouteWebhooksIDTokenMessagesID: {0},

	// Application-scoped command routes bucket per application id.
	RouteApplicationCommand:        {0},
	RouteApplicationCommandID:      {0},
	RouteApplicationGuildCommand:   {0},
	RouteApplicationGuildCommandID: {0},
}

// MajorParams returns the subset of r.IDs that participate in bucketing for
// r.Kind, in stable order. Routes with no entry (e.g. UsersID, InvitesCode,
// Gateway) return nil: no id is major.
func MajorParams(r Route) []string {
	idx, ok := majorParamIndex[r.Kind]
	if !ok {
		return nil
	}
	major := make([]string, 0, len(idx))
	for _, i := range idx {
		if i < len(r.IDs) {
			major = append(major, r.IDs[i])
		}
	}
	return major
}

// BucketKey identifies a rate-limit bucket: a Route kind plus its major
// parameters. Two requests share a bucket iff their BucketKey is equal.
type BucketKey struct {
	Kind  RouteKind
	Major string
}

// NewBucketKey derives the BucketKey for a classified route.
func NewBucketKey(r Route) BucketKey {
	return BucketKey{Kind: r.Kind, Major: strings.Join(MajorParams(r), "/")}
}
