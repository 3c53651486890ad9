package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	"github.com/mauv0809/refactored-ladder/internal/notifier"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)

	if err != nil {
		s.metrics.IncNotificationsFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncNotificationsSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

// Implement the Notifier interface
func (s *Notifier) ChallengeCreated(match *ladder.Match, challenger, defender *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatChallengeCreated(challenger, defender)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) ChallengeAccepted(match *ladder.Match, challenger, defender *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatChallengeAccepted(challenger, defender)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) ResultReported(match *ladder.Match, reporter, opponent *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatResultReported(match, reporter, opponent)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) ResultVerified(match *ladder.Match, winner, loser *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatResultVerified(match, winner, loser)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) ResultDisputed(match *ladder.Match, disputer *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatResultDisputed(disputer)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) ChallengeNudge(match *ladder.Match, defender *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatChallengeNudge(defender)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) PendingNudge(match *ladder.Match, playerOne, playerTwo *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatPendingNudge(playerOne, playerTwo)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) ForfeitWarning(match *ladder.Match, playerOne, playerTwo *ladder.PlayerProfile, deadline time.Time, dryRun bool) error {
	msg := s.formatForfeitWarning(playerOne, playerTwo, deadline)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) InactivityWarning(profile *ladder.PlayerProfile, threshold time.Time, dryRun bool) error {
	msg := s.formatInactivityWarning(profile, threshold)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) InactivityPenalty(profile *ladder.PlayerProfile, oldRating, newRating int, dryRun bool) error {
	msg := s.formatInactivityPenalty(profile, oldRating, newRating)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) RemovalWarning(profile *ladder.PlayerProfile, deadline time.Time, dryRun bool) error {
	msg := s.formatRemovalWarning(profile, deadline)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) PlayerRemoved(profile *ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatPlayerRemoved(profile)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

func (s *Notifier) SendStandings(sport *ladder.Sport, profiles []*ladder.PlayerProfile, dryRun bool) error {
	msg := s.formatStandings(sport, profiles)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// FormatStandingsResponse formats a standings message for a slash command response.
func (s *Notifier) FormatStandingsResponse(sport *ladder.Sport, profiles []*ladder.PlayerProfile) (any, error) {
	return s.formatStandings(sport, profiles), nil
}

func (s *Notifier) formatChallengeCreated(challenger, defender *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "⚔️ New challenge! ⚔️", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s has challenged %s.", nameWithRank(challenger), nameWithRank(defender))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	contextText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("%s, accept or decline from your challenges page.", defender.Name), true, false)
	blocks = append(blocks, slack.NewContextBlock("", contextText))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatChallengeAccepted(challenger, defender *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "🤝 Challenge accepted! 🤝", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s vs %s is on. Book a court and report the result when you're done.", nameWithRank(challenger), nameWithRank(defender))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatResultReported(match *ladder.Match, reporter, opponent *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "📋 Result reported", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s reported a result against %s.", reporter.Name, opponent.Name)
	if score := formatScores(match.Scores); score != "" {
		bodyText += "\nScore: " + score
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	contextText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("%s, verify or dispute the result.", opponent.Name), true, false)
	blocks = append(blocks, slack.NewContextBlock("", contextText))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatResultVerified(match *ladder.Match, winner, loser *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "🏆 Match finished! 🏆", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s beat %s.", nameWithRank(winner), nameWithRank(loser))
	if score := formatScores(match.Scores); score != "" {
		bodyText += "\nScore: " + score
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatResultDisputed(disputer *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "⚠️ Result disputed", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s disputed the reported result. An admin needs to resolve it.", disputer.Name)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatChallengeNudge(defender *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "⏰ Challenge waiting", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s, you have an open challenge waiting for a response.", defender.Name)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatPendingNudge(playerOne, playerTwo *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "⏰ Match still unplayed", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s and %s, your match is still waiting to be played.", playerOne.Name, playerTwo.Name)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatForfeitWarning(playerOne, playerTwo *ladder.PlayerProfile, deadline time.Time) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "🚨 Forfeit deadline approaching", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s and %s, play and report your match before %s or it may be forfeited.",
		playerOne.Name, playerTwo.Name, deadline.Format("Monday 02 Jan, 15:04"))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatInactivityWarning(profile *ladder.PlayerProfile, threshold time.Time) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "💤 Inactivity warning", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s, you haven't played in a while. Play a match before %s to avoid a rating penalty.",
		profile.Name, threshold.Format("Monday 02 Jan"))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatInactivityPenalty(profile *ladder.PlayerProfile, oldRating, newRating int) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "📉 Inactivity penalty applied", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s lost rating for inactivity: %d → %d. Play a match to stop further penalties.",
		profile.Name, oldRating, newRating)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatRemovalWarning(profile *ladder.PlayerProfile, deadline time.Time) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "🚨 Removal warning", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s, you'll be removed from the ladder on %s unless you play a match.",
		profile.Name, deadline.Format("Monday 02 Jan"))
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatPlayerRemoved(profile *ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "👋 Player removed from ladder", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	bodyText := fmt.Sprintf("%s has been removed from the ladder due to inactivity. They can rejoin at any time.", profile.Name)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", bodyText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatStandings(sport *ladder.Sport, profiles []*ladder.PlayerProfile) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", fmt.Sprintf("🏆 %s Ladder 🏆", sport.Name), true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(profiles) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No players on the ladder yet. Go play some matches!", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	var lines []string
	for _, p := range profiles {
		if p.LadderRank == nil {
			continue
		}
		var medal string
		switch *p.LadderRank {
		case 1:
			medal = "🥇 "
		case 2:
			medal = "🥈 "
		case 3:
			medal = "🥉 "
		}
		lines = append(lines, fmt.Sprintf("%d. %s%s (%d, %d played)", *p.LadderRank, medal, p.Name, p.Rating, p.MatchesPlayed))
	}
	if len(lines) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No ranked players yet.", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", strings.Join(lines, "\n"), true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

// nameWithRank renders "Name (#3)" or just the name for unranked players.
func nameWithRank(p *ladder.PlayerProfile) string {
	if p.LadderRank != nil {
		return fmt.Sprintf("%s (#%d)", p.Name, *p.LadderRank)
	}
	return p.Name
}

// formatScores renders a score sheet for humans: "6-4, 3-6, 7-5" for set
// play, the reason for forfeits and withdrawals, or "" when nothing is known.
func formatScores(sheet *ladder.ScoreSheet) string {
	if sheet == nil {
		return ""
	}
	if sheet.IsReason() {
		return sheet.Reason
	}
	var parts []string
	for _, set := range sheet.Sets {
		parts = append(parts, fmt.Sprintf("%d-%d", set.P1, set.P2))
	}
	return strings.Join(parts, ", ")
}
