package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/absmach/rotor/model"
)

// DefPollInterval is how often a client re-asks for its role while the
// election is still pending.
const DefPollInterval = 2 * time.Second

var ErrConnection = errors.New("connection error")

// Client holds one persistent connection to an exchange server.
type Client struct {
	conn *websocket.Conn
}

func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(req Request) (Reply, error) {
	data, err := EncodeRequest(req)
	if err != nil {
		return Reply{}, err
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return DecodeReply(raw)
}

// Register announces this component. A StatusClosed reply means the
// registration window already elapsed.
func (c *Client) Register(p Participant) (Reply, error) {
	return c.roundTrip(Request{
		Kind:        KindRegister,
		ComponentID: p.ComponentID,
		IP:          p.IP,
		Port:        p.Port,
	})
}

func (c *Client) GetFeaturesDB() (map[string]string, error) {
	rep, err := c.roundTrip(Request{Kind: KindGetFeaturesDB})
	if err != nil {
		return nil, err
	}
	if rep.Status != StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %q", ErrProtocol, rep.Status)
	}

	return rep.DatabaseFeatures, nil
}

func (c *Client) GetAggregator() (*Participant, error) {
	rep, err := c.roundTrip(Request{Kind: KindGetAggregator})
	if err != nil {
		return nil, err
	}
	if rep.Status != StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %q", ErrProtocol, rep.Status)
	}

	return rep.Aggregator, nil
}

// RoleAssignment is the outcome of a completed election as seen by one
// component.
type RoleAssignment struct {
	Role       string
	Aggregator Participant
	Model      model.Transport
}

// WaitForRole polls get_role_and_model until the election completes,
// sleeping interval between pending replies.
func (c *Client) WaitForRole(ctx context.Context, componentID string, interval time.Duration) (RoleAssignment, error) {
	if interval <= 0 {
		interval = DefPollInterval
	}

	for {
		rep, err := c.roundTrip(Request{Kind: KindGetRoleAndModel, ComponentID: componentID})
		if err != nil {
			return RoleAssignment{}, err
		}

		switch rep.Status {
		case StatusOK:
			assignment := RoleAssignment{
				Role:  rep.Role,
				Model: rep.Model,
			}
			if rep.Aggregator != nil {
				assignment.Aggregator = *rep.Aggregator
			}

			return assignment, nil
		case StatusPending:
			select {
			case <-ctx.Done():
				return RoleAssignment{}, ctx.Err()
			case <-time.After(interval):
			}
		default:
			return RoleAssignment{}, fmt.Errorf("%w: unexpected status %q: %s", ErrProtocol, rep.Status, rep.Info)
		}
	}
}
