package main

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/poll"
	"github.com/toolink/hookpubsub/pubsub"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"channel":     runChannel,
	"publish":     runPublish,
	"subscribe":   runSubscribe,
	"unsubscribe": runUnsubscribe,
	"list":        runList,
	"events":      runEvents,
	"attempts":    runAttempts,
}

// parse parses args with flags and checks the positional argument count.
func parse(flags *pflag.FlagSet, args []string, positional ...string) ([]string, error) {
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := flags.Args()
	if len(rest) != len(positional) {
		return nil, fmt.Errorf("%w: %s expects %s", errUsage, flags.Name(), strings.Join(positional, " "))
	}
	return rest, nil
}

type channelView struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	SourceID string `json:"source_id"`
}

func runChannel(ctx context.Context, a *app, args []string) error {
	flags := pflag.NewFlagSet("channel", pflag.ContinueOnError)
	rest, err := parse(flags, args, "NAME")
	if err != nil {
		return err
	}

	ch, err := a.client.Channel(ctx, rest[0])
	if err != nil {
		return err
	}
	return a.print(channelView{Name: ch.Name(), URL: ch.URL(), SourceID: ch.Source().ID})
}

type deliveryView struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Body   any    `json:"body,omitempty"`
	Error  string `json:"error,omitempty"`
}

func runPublish(ctx context.Context, a *app, args []string) error {
	var (
		eventType string
		data      string
		body      string
		headers   map[string]string
	)
	flags := pflag.NewFlagSet("publish", pflag.ContinueOnError)
	flags.StringVar(&eventType, "type", "", "event type, sent as {type, data}")
	flags.StringVar(&data, "data", "null", "JSON data of a typed event")
	flags.StringVar(&body, "body", "", "raw JSON body, sent as is")
	flags.StringToStringVarP(&headers, "header", "H", nil, "extra request header key=value")
	rest, err := parse(flags, args, "NAME")
	if err != nil {
		return err
	}
	if a.memory {
		return fmt.Errorf("%w: publish posts to a source URL and needs the hosted API, drop --memory", errUsage)
	}

	var evt pubsub.Event
	switch {
	case eventType != "" && body != "":
		return fmt.Errorf("%w: --type and --body are exclusive", errUsage)
	case eventType != "":
		evt = pubsub.TypedEvent{Type: eventType, Data: json.RawMessage(data), Headers: headers}
	case body != "":
		evt = pubsub.RawEvent{Body: json.RawMessage(body), Headers: headers}
	default:
		return fmt.Errorf("%w: one of --type or --body is required", errUsage)
	}

	ch, err := a.client.Channel(ctx, rest[0])
	if err != nil {
		return err
	}
	res := ch.Publish(ctx, evt)
	view := deliveryView{OK: res.OK, Status: res.Status, Body: res.Body}
	if res.Err != nil {
		view.Error = res.Err.Error()
	}
	if err := a.print(view); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("publish to %s failed", rest[0])
	}
	return nil
}

type subscriptionView struct {
	ID          string `json:"id"`
	ChannelName string `json:"channel"`
	URL         string `json:"url"`
	AuthMethod  string `json:"auth_method,omitempty"`
}

func toSubscriptionView(sub pubsub.Subscription) subscriptionView {
	view := subscriptionView{ID: sub.ID, ChannelName: sub.ChannelName, URL: sub.URL}
	if m := sub.Connection.Destination.AuthMethod; m != nil {
		view.AuthMethod = m.Type
	}
	return view
}

func runSubscribe(ctx context.Context, a *app, args []string) error {
	var method, username, password, key, apiKey, to, token, secret string
	flags := pflag.NewFlagSet("subscribe", pflag.ContinueOnError)
	flags.StringVar(&method, "auth", "", "destination auth method (HOOKDECK_SIGNATURE, BASIC_AUTH, API_KEY, BEARER_TOKEN, CUSTOM_SIGNATURE)")
	flags.StringVar(&username, "username", "", "BASIC_AUTH username")
	flags.StringVar(&password, "password", "", "BASIC_AUTH password")
	flags.StringVar(&key, "key", "", "API_KEY or CUSTOM_SIGNATURE key name")
	flags.StringVar(&apiKey, "api-key", "", "API_KEY value")
	flags.StringVar(&to, "to", "header", "API_KEY placement (header or query)")
	flags.StringVar(&token, "token", "", "BEARER_TOKEN token")
	flags.StringVar(&secret, "secret", "", "CUSTOM_SIGNATURE signing secret")
	rest, err := parse(flags, args, "CHANNEL", "URL")
	if err != nil {
		return err
	}

	var am *auth.DestinationAuthMethod
	switch strings.ToUpper(method) {
	case "":
	case auth.MethodHookdeckSignature:
		am = auth.HookdeckSignature()
	case auth.MethodBasicAuth:
		am = auth.DestinationBasicAuth(username, password)
	case auth.MethodAPIKey:
		am = auth.DestinationAPIKey(key, apiKey, to)
	case auth.MethodBearerToken:
		am = auth.DestinationBearerToken(token)
	case auth.MethodCustomSignature:
		am = auth.DestinationCustomSignature(key, secret)
	default:
		return fmt.Errorf("%w: unknown auth method %q", errUsage, method)
	}

	sub, err := a.client.Subscribe(ctx, pubsub.SubscribeRequest{ChannelName: rest[0], URL: rest[1], Auth: am})
	if err != nil {
		return err
	}
	return a.print(toSubscriptionView(*sub))
}

func runUnsubscribe(ctx context.Context, a *app, args []string) error {
	var removeDestination bool
	flags := pflag.NewFlagSet("unsubscribe", pflag.ContinueOnError)
	flags.BoolVar(&removeDestination, "remove-destination", false, "also delete the subscription's destination")
	rest, err := parse(flags, args, "ID")
	if err != nil {
		return err
	}

	if err := a.client.Unsubscribe(ctx, pubsub.UnsubscribeRequest{ID: rest[0], RemoveDestination: removeDestination}); err != nil {
		return err
	}
	a.logger.Info().Str("subscription_id", rest[0]).Msg("unsubscribed")
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	var id, channel string
	flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
	flags.StringVar(&id, "id", "", "subscription id")
	flags.StringVar(&channel, "channel", "", "partial channel name")
	if _, err := parse(flags, args); err != nil {
		return err
	}

	subs, err := a.client.ListSubscriptions(ctx, pubsub.ListRequest{SubscriptionID: id, ChannelName: channel})
	if err != nil {
		return err
	}
	views := make([]subscriptionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, toSubscriptionView(sub))
	}
	return a.print(views)
}

func runEvents(ctx context.Context, a *app, args []string) error {
	var includeBody, wait bool
	flags := pflag.NewFlagSet("events", pflag.ContinueOnError)
	flags.BoolVar(&includeBody, "body", false, "retrieve each event's request data")
	flags.BoolVar(&wait, "wait", false, "poll until at least one event exists")
	rest, err := parse(flags, args, "SUBSCRIPTION_ID")
	if err != nil {
		return err
	}

	req := pubsub.EventsRequest{SubscriptionID: rest[0], IncludeBody: includeBody}
	if wait {
		events, err := a.client.WaitForEvents(ctx, req, poll.Options{})
		if err != nil {
			return err
		}
		return a.print(events)
	}
	events, err := a.client.Events(ctx, req)
	if err != nil {
		return err
	}
	return a.print(events)
}

func runAttempts(ctx context.Context, a *app, args []string) error {
	var includeBody, wait bool
	flags := pflag.NewFlagSet("attempts", pflag.ContinueOnError)
	flags.BoolVar(&includeBody, "body", false, "retrieve each attempt's response body")
	flags.BoolVar(&wait, "wait", false, "poll until at least one attempt exists")
	rest, err := parse(flags, args, "EVENT_ID")
	if err != nil {
		return err
	}

	req := pubsub.AttemptsRequest{EventID: rest[0], IncludeBody: includeBody}
	if wait {
		attempts, err := a.client.WaitForDeliveryAttempts(ctx, req, poll.Options{})
		if err != nil {
			return err
		}
		return a.print(attempts)
	}
	attempts, err := a.client.DeliveryAttempts(ctx, req)
	if err != nil {
		return err
	}
	return a.print(attempts)
}
