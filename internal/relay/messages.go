package relay

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/examhub/internal/model"
)

const (
	msgFormatHelp = "Please send your details in one message:\n" +
		"Surname Name Phone\n" +
		"Example: Karimov Javohir +998901234567"
	msgNotRegistered   = "This chat is not registered yet.\n\n" + msgFormatHelp
	msgAlreadyLinked   = "This person is already linked to another Telegram account. If this is you, please contact your exam center."
	msgChatTaken       = "This Telegram account is already linked to a different person. Use /results to see your exams."
	msgGenericFailure  = "Something went wrong on our side. Please try again in a few minutes."
	msgNoResults       = "You have no exams yet."
	msgPhoneInvalid    = "The phone number does not look valid. Include the country code, e.g. +998901234567."
	resultsDateLayout  = "02.01.2006 15:04"
	pendingScoreMarker = "not published yet"
)

// welcomeText answers /start. user is nil for chats that are not linked.
func welcomeText(user *model.User) string {
	if user == nil {
		return "Welcome! This bot sends you your exam results.\n\n" + msgFormatHelp
	}
	return fmt.Sprintf("Welcome back, %s!\nYour login: %s\nSend /results to see your exams.",
		user.FullName(), user.Login)
}

// credentialsText answers a successful registration.
func credentialsText(c *model.Credentials) string {
	var b strings.Builder
	if c.Created {
		b.WriteString("You are registered.\n")
		fmt.Fprintf(&b, "Login: %s\nPassword: %s\n", c.Login, c.Password)
		b.WriteString("Please change your password after the first sign-in.\n")
	} else {
		b.WriteString("Your account is linked to this chat.\n")
		fmt.Fprintf(&b, "Login: %s\n", c.Login)
		b.WriteString("Use your existing password to sign in.\n")
	}
	b.WriteString("\nYou will get a message here as soon as a result is published.")
	return b.String()
}

// scoreText renders a published result pushed from the score store.
func scoreText(n NotifyPayload) string {
	var b strings.Builder
	b.WriteString("Your exam result is ready!\n")
	if n.StudentName != "" {
		fmt.Fprintf(&b, "Student: %s\n", n.StudentName)
	}
	if n.TestName != "" {
		fmt.Fprintf(&b, "Test: %s\n", n.TestName)
	}
	if n.Login != "" {
		fmt.Fprintf(&b, "Login: %s\n", n.Login)
	}
	b.WriteString(formatScore(n.Score))
	return strings.TrimRight(b.String(), "\n")
}

// formatScore renders a number, a string, or a section→value object.
func formatScore(v any) string {
	switch s := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString("Score:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, scalar(s[k]))
		}
		return b.String()
	default:
		return "Score: " + scalar(v) + "\n"
	}
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
}

// resultsText renders the /results summary. Unpublished scores are hidden.
func resultsText(entries []model.ResultEntry) string {
	if len(entries) == 0 {
		return msgNoResults
	}

	var b strings.Builder
	b.WriteString("Your exams:\n")
	for i, e := range entries {
		title := e.ExamType
		if e.TestName != "" {
			title = e.TestName
		}
		fmt.Fprintf(&b, "\n%d. %s (%s)\n", i+1, title, e.CenterID)
		fmt.Fprintf(&b, "   Status: %s\n", statusLabel(e.Status))
		if e.SubmittedAt != nil {
			fmt.Fprintf(&b, "   Submitted: %s\n", e.SubmittedAt.In(time.UTC).Format(resultsDateLayout))
		}

		switch {
		case e.Score != nil:
			for _, line := range strings.Split(strings.TrimRight(formatScore(e.Score.FinalScore), "\n"), "\n") {
				fmt.Fprintf(&b, "   %s\n", line)
			}
		case e.Status == model.AttemptStatusSubmitted:
			fmt.Fprintf(&b, "   Score: %s\n", pendingScoreMarker)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusLabel(s model.AttemptStatus) string {
	switch s {
	case model.AttemptStatusReady:
		return "ready to start"
	case model.AttemptStatusInProgress:
		return "in progress"
	case model.AttemptStatusSubmitted:
		return "submitted"
	case model.AttemptStatusExpired:
		return "expired"
	default:
		return string(s)
	}
}
