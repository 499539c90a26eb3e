package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoSentMail means there is nothing to learn a writing style from.
var ErrNoSentMail = errors.New("no sent emails to analyze")

// AnalyzeStyle builds a writing-style profile from recently sent mail and
// stores it on the account. The profile feeds every later classification
// prompt.
func (u *classificationUsecase) AnalyzeStyle(ctx context.Context, accountID string) (string, error) {
	unlock := u.locks.Lock(accountID)
	defer unlock()

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return "", err
	}
	sess, err := u.open(ctx, acc)
	if err != nil {
		return "", err
	}
	defer closeSession(sess)

	snippets, err := sess.SentSnippets(ctx, styleSampleSize)
	if err != nil {
		return "", fmt.Errorf("failed to read sent mail: %w", err)
	}
	if len(snippets) == 0 {
		return "", ErrNoSentMail
	}

	out, err := u.llm.Complete(ctx, BuildStylePrompt(snippets), styleMaxTokens, styleTemperature)
	if err != nil {
		return "", fmt.Errorf("style analysis failed: %w", err)
	}
	profile := strings.TrimSpace(out)

	next := acc.Clone()
	next.StyleProfile = profile
	if err := u.save(next, nil, u.now()); err != nil {
		return "", err
	}
	logrus.Infof("[Style] %s: profile updated from %d sent emails", acc.Email, len(snippets))
	return profile, nil
}

func (u *classificationUsecase) GetStyleProfile(accountID string) (string, error) {
	acc, err := u.loadAccount(accountID)
	if err != nil {
		return "", err
	}
	return acc.StyleProfile, nil
}
