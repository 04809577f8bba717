package beemsg

import (
	"time"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/types"
	"github.com/beegfs/mgmtd/pkg/wire"
)

// Client sends the messages this process originates: capacity-class
// pushes, exceeded-quota pushes, and the quota pull. It keeps its own
// connection pool, separate from Server's, rather than opening a fresh
// socket per call, since pkg/quota and pkg/capacity may address the same
// storage node many times a second.
type Client struct {
	pool   *connPool
	secret []byte
}

// NewClient builds a client over its own short-lived connection pool. cfg's
// secret, if set, is mixed into every frame's auth hash the same way the
// server checks it on the way in.
func NewClient(cfg Config) *Client {
	if cfg.PoolCap == 0 {
		cfg.PoolCap = 12
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	return &Client{
		pool:   newConnPool(cfg.PoolCap, cfg.IdleTimeout),
		secret: cfg.Secret,
	}
}

// Close stops the client's connection pool.
func (c *Client) Close() { c.pool.closeAll() }

// roundTrip sends req to addr and decodes the reply into resp. On any
// transport error the connection is discarded rather than returned to the
// pool, since a connection that failed mid-exchange is not trustworthy.
func (c *Client) roundTrip(addr string, req wire.Message, resp wire.Message) error {
	conn, err := c.pool.get(addr)
	if err != nil {
		return mgmterr.Wrap(mgmterr.KindTransportAccept, "dial beemsg peer", err)
	}
	if err := wire.Encode(conn, req, c.secret); err != nil {
		c.pool.discard(conn)
		return err
	}
	if resp == nil {
		c.pool.put(addr, conn)
		return nil
	}
	if err := wire.Decode(conn, resp, c.secret); err != nil {
		c.pool.discard(conn)
		return err
	}
	c.pool.put(addr, conn)
	return nil
}

// PushCapacityClass notifies a storage node of its new capacity
// classification so it can locally prefer or avoid itself for placement.
func (c *Client) PushCapacityClass(addr string, targetID uint16, class types.CapacityClass) error {
	ack := &wire.Ack{}
	if err := c.roundTrip(addr, &wire.SetCapacityPool{TargetID: targetID, Class: class}, ack); err != nil {
		return err
	}
	return ackErr(ack)
}

// PushExceededQuota notifies a storage node which identities of idType/qType
// have exceeded their limit, so the node can enforce locally.
func (c *Client) PushExceededQuota(addr string, idType types.IdentityType, qType types.QuotaType, ids []int64) error {
	ack := &wire.Ack{}
	req := &wire.SetExceededQuota{IDType: idType, QType: qType, IDs: ids}
	if err := c.roundTrip(addr, req, ack); err != nil {
		return err
	}
	return ackErr(ack)
}

// PullQuotaUsage asks a storage node for one identity's locally tracked
// usage, as part of the periodic quota pull cycle.
func (c *Client) PullQuotaUsage(addr string, idType types.IdentityType, qType types.QuotaType, id int64) (int64, error) {
	resp := &wire.GetQuotaInfoResp{}
	req := &wire.GetQuotaInfo{IDType: idType, QType: qType, ID: id}
	if err := c.roundTrip(addr, req, resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

func ackErr(ack *wire.Ack) error {
	if !ack.OK {
		return mgmterr.New(mgmterr.KindWireUnsupported, "peer rejected push")
	}
	return nil
}
