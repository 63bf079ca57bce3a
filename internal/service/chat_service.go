package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
)

type messageRepository interface {
	Append(ctx context.Context, msg *models.Message) error
	ListPublic(ctx context.Context, channel models.ChatChannel) ([]models.Message, error)
	ListPrivateFor(ctx context.Context, userID string) ([]models.Message, error)
}

type contactDirectory interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.Contact, error)
}

// ChatServiceConfig bounds outbound messages and contact caching.
type ChatServiceConfig struct {
	MaxBodyLength    int
	ContactsCacheTTL time.Duration
}

// ChatService computes per-viewer visibility over the message log and
// validates outbound sends.
type ChatService struct {
	repo    messageRepository
	users   contactDirectory
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	config  ChatServiceConfig

	now func() time.Time
}

// NewChatService constructs the service.
func NewChatService(repo messageRepository, users contactDirectory, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config ChatServiceConfig) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxBodyLength <= 0 {
		config.MaxBodyLength = 2000
	}
	return &ChatService{
		repo:    repo,
		users:   users,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		config:  config,
		now:     time.Now,
	}
}

// FilterVisible returns the subset of messages the viewer may see, in the
// input order. Private mode keeps messages where the viewer is a party,
// optionally narrowed to one peer. Public mode keeps the selected channel;
// the students channel is additionally partitioned by section unless the
// viewer's role sees all sections.
func FilterVisible(messages []models.Message, viewer models.ViewerContext) []models.Message {
	visible := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if messageVisible(msg, viewer) {
			visible = append(visible, msg)
		}
	}
	return visible
}

func messageVisible(msg models.Message, viewer models.ViewerContext) bool {
	if viewer.Mode == models.VisibilityPrivate {
		if msg.Visibility != models.VisibilityPrivate || msg.RecipientID == nil {
			return false
		}
		if msg.SenderID != viewer.UserID && *msg.RecipientID != viewer.UserID {
			return false
		}
		if viewer.SelectedPeerID == "" {
			return true
		}
		other := msg.SenderID
		if other == viewer.UserID {
			other = *msg.RecipientID
		}
		return other == viewer.SelectedPeerID
	}

	if msg.Visibility != models.VisibilityPublic || msg.Channel == nil {
		return false
	}
	if viewer.Channel == models.ChannelTeachers {
		return *msg.Channel == models.ChannelTeachers
	}
	if *msg.Channel != models.ChannelStudents {
		return false
	}
	if viewer.Role.Elevated() {
		return true
	}
	return msg.Section != nil && *msg.Section == viewer.Section
}

// ListMessages loads the relevant slice of the log and applies the
// visibility filter. Results keep sent_at ascending order.
func (s *ChatService) ListMessages(ctx context.Context, viewer models.ViewerContext) ([]models.Message, error) {
	if viewer.Mode == models.VisibilityPublic && viewer.Channel == models.ChannelTeachers && !viewer.Role.Elevated() {
		return nil, appErrors.ErrForbidden
	}

	var (
		messages []models.Message
		err      error
	)
	if viewer.Mode == models.VisibilityPrivate {
		messages, err = s.repo.ListPrivateFor(ctx, viewer.UserID)
	} else {
		messages, err = s.repo.ListPublic(ctx, viewer.Channel)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load messages")
	}
	return FilterVisible(messages, viewer), nil
}

// SendRequest is an outbound message before validation.
type SendRequest struct {
	Body        string                `json:"body"`
	Visibility  models.VisibilityMode `json:"visibility"`
	Channel     models.ChatChannel    `json:"channel,omitempty"`
	RecipientID string                `json:"recipient_id,omitempty"`
}

// SendMessage validates the request, stamps and appends the message, and
// returns it. Checks run in fixed order: empty body, length, then
// mode-specific recipient and channel rules.
func (s *ChatService) SendMessage(ctx context.Context, sender *models.JWTClaims, req SendRequest) (*models.Message, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, appErrors.ErrEmptyBody
	}
	if len(body) > s.config.MaxBodyLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message body is too long")
	}

	msg := &models.Message{
		SenderID:   sender.UserID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Body:       body,
		SentAt:     s.now().UTC(),
	}

	switch req.Visibility {
	case models.VisibilityPrivate:
		if req.RecipientID == "" {
			return nil, appErrors.ErrNoRecipient
		}
		if req.RecipientID == sender.UserID {
			return nil, appErrors.ErrSelfMessage
		}
		msg.Visibility = models.VisibilityPrivate
		recipient := req.RecipientID
		msg.RecipientID = &recipient
	case models.VisibilityPublic, "":
		channel := req.Channel
		if channel == "" {
			channel = models.ChannelStudents
		}
		if !channel.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown channel")
		}
		if channel == models.ChannelTeachers && !sender.Role.Elevated() {
			return nil, appErrors.ErrForbidden
		}
		msg.Visibility = models.VisibilityPublic
		msg.Channel = &channel
		if channel == models.ChannelStudents {
			section := sender.Section
			msg.Section = &section
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown visibility mode")
	}

	if err := s.repo.Append(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store message")
	}
	s.metrics.RecordMessageSent(string(msg.Visibility))
	return msg, nil
}

// ListContacts returns the viewer's possible private-message peers: every
// teacher, plus the students of the viewer's own section. Teachers see
// students of all sections. Results are cached per role and section.
func (s *ChatService) ListContacts(ctx context.Context, viewer *models.JWTClaims) ([]models.Contact, error) {
	cacheKey := "contacts:" + string(viewer.Role) + ":" + viewer.Section
	var cached []models.Contact
	if s.cache.Get(ctx, cacheKey, &cached) {
		return without(cached, viewer.UserID), nil
	}

	teachers, err := s.users.ListByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list teachers")
	}
	students, err := s.users.ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list students")
	}

	contacts := teachers
	for _, student := range students {
		if viewer.Role.Elevated() || student.Section == viewer.Section {
			contacts = append(contacts, student)
		}
	}

	s.cache.Set(ctx, cacheKey, contacts, s.config.ContactsCacheTTL)
	return without(contacts, viewer.UserID), nil
}

func without(contacts []models.Contact, userID string) []models.Contact {
	out := make([]models.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.ID != userID {
			out = append(out, c)
		}
	}
	return out
}
