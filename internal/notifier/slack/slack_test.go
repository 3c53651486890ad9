package slack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSlackAPI is a mock implementation of the parts of the slack.Client that we use.
type mockSlackAPI struct {
	postMessageContextFunc func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

func (m *mockSlackAPI) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	if m.postMessageContextFunc != nil {
		return m.postMessageContextFunc(ctx, channelID, options...)
	}
	return "C12345", "123456789.12345", nil
}

func rankedProfile(name string, rank int) *ladder.PlayerProfile {
	return &ladder.PlayerProfile{ID: name, Name: name, Rating: 1000, LadderRank: &rank}
}

func TestSendMessage_DryRun(t *testing.T) {
	metrics := metrics.NewMock()
	// Pass nil for the api, as it shouldn't be called in dry-run mode.
	notifier := NewNotifierWithAPI(nil, "C123", metrics)

	message := slackapi.NewBlockMessage()
	_, _, err := notifier.sendMessage(message, true)
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.NotificationsSent())
}

func TestSendMessage_Success(t *testing.T) {
	postMessageCalled := false
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			postMessageCalled = true
			assert.Equal(t, "C123", channelID)
			return "C123", "ts123", nil
		},
	}

	metrics := metrics.NewMock()
	notifier := NewNotifierWithAPI(api, "C123", metrics)

	message := slackapi.NewBlockMessage(slackapi.NewSectionBlock(slackapi.NewTextBlockObject("plain_text", "hello", false, false), nil, nil))
	_, _, err := notifier.sendMessage(message, false)

	require.NoError(t, err)
	assert.True(t, postMessageCalled, "PostMessageContext should have been called")
	assert.Equal(t, 1, metrics.NotificationsSent())
	assert.Equal(t, 0, metrics.NotificationsFailed())
}

func TestSendMessage_Failure(t *testing.T) {
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			return "", "", errors.New("slack is down")
		},
	}

	metrics := metrics.NewMock()
	notifier := NewNotifierWithAPI(api, "C123", metrics)

	_, _, err := notifier.sendMessage(slackapi.NewBlockMessage(), false)

	require.Error(t, err)
	assert.Equal(t, 0, metrics.NotificationsSent())
	assert.Equal(t, 1, metrics.NotificationsFailed())
}

func TestChallengeCreated_SendsMessage(t *testing.T) {
	api := &mockSlackAPI{}
	notifier := NewNotifierWithAPI(api, "C123", metrics.NewMock())

	match := &ladder.Match{ID: "m1", Player1ID: "alice", Player2ID: "bob"}
	err := notifier.ChallengeCreated(match, rankedProfile("alice", 5), rankedProfile("bob", 3), false)
	require.NoError(t, err)
}

func TestResultVerified_IncludesScore(t *testing.T) {
	var sent bool
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			sent = true
			return "C123", "ts", nil
		},
	}
	notifier := NewNotifierWithAPI(api, "C123", metrics.NewMock())

	match := &ladder.Match{
		ID:        "m1",
		Player1ID: "alice",
		Player2ID: "bob",
		Scores: &ladder.ScoreSheet{Sets: []ladder.SetScore{
			{P1: 6, P2: 4},
			{P1: 3, P2: 6},
			{P1: 7, P2: 5},
		}},
	}
	err := notifier.ResultVerified(match, rankedProfile("alice", 3), rankedProfile("bob", 4), false)
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestForfeitWarning_DryRun(t *testing.T) {
	notifier := NewNotifierWithAPI(nil, "C123", metrics.NewMock())

	match := &ladder.Match{ID: "m1", Player1ID: "alice", Player2ID: "bob"}
	deadline := time.Now().Add(24 * time.Hour)
	err := notifier.ForfeitWarning(match, rankedProfile("alice", 1), rankedProfile("bob", 2), deadline, true)
	require.NoError(t, err)
}

func TestFormatScores(t *testing.T) {
	assert.Equal(t, "", formatScores(nil))
	assert.Equal(t, "forfeit", formatScores(&ladder.ScoreSheet{Reason: ladder.ReasonForfeit, ForfeitedBy: "bob"}))
	assert.Equal(t, "6-4, 7-5", formatScores(&ladder.ScoreSheet{Sets: []ladder.SetScore{{P1: 6, P2: 4}, {P1: 7, P2: 5}}}))
}

func TestFormatStandings_EmptyLadder(t *testing.T) {
	notifier := NewNotifierWithAPI(nil, "C123", metrics.NewMock())

	sport := &ladder.Sport{ID: "s1", Name: "Squash"}
	msg := notifier.formatStandings(sport, nil)
	require.Len(t, msg.Blocks.BlockSet, 2)
}
