package notification

import (
	"context"
	"errors"

	"herald/internal/gateway"
	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
)

// ChannelService exposes read access to channels and connectivity probes.
// Channel writes belong to the surrounding application.
type ChannelService interface {
	ListChannels(ctx context.Context) ([]Channel, error)
	GetChannel(ctx context.Context, id string) (*Channel, error)
	TestChannel(ctx context.Context, req TestChannelRequest) gateway.ConnectionResult
	GetChannelInfo(ctx context.Context, id string) (*ChannelInfo, error)
}

type channelService struct {
	repo    ChannelRepository
	gateway gateway.Client
	logger  logger.Logger
}

func NewChannelService(repo ChannelRepository, gw gateway.Client, log logger.Logger) ChannelService {
	return &channelService{
		repo:    repo,
		gateway: gw,
		logger:  log,
	}
}

func (s *channelService) ListChannels(ctx context.Context) ([]Channel, error) {
	channels, err := s.repo.ListChannels(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
	if channels == nil {
		channels = []Channel{}
	}
	return channels, nil
}

func (s *channelService) GetChannel(ctx context.Context, id string) (*Channel, error) {
	channel, err := s.repo.GetChannel(ctx, id)
	if errors.Is(err, ErrChannelNotFound) {
		return nil, pkgerrors.NotFoundf("notification channel %s not found", id).WithDetail("id", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrStorage)
	}
	return channel, nil
}

func (s *channelService) TestChannel(ctx context.Context, req TestChannelRequest) gateway.ConnectionResult {
	return s.gateway.ValidateConnection(ctx, req.ServerURL, req.Token)
}

func (s *channelService) GetChannelInfo(ctx context.Context, id string) (*ChannelInfo, error) {
	channel, err := s.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}

	info := s.gateway.GetServerInfo(ctx, channel.ServerURL, channel.Token)
	if info.Error != "" {
		s.logger.InfowCtx(ctx, "Server info lookup failed", "channel_id", id, "error", info.Error)
	}
	return &ChannelInfo{
		ChannelID: id,
		Version:   info.Version,
		Error:     info.Error,
	}, nil
}
