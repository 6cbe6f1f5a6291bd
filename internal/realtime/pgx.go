package realtime

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// pgxConn 把 *pgx.Conn 适配成 Conn。LISTEN 需要独占连接，
// 不能走 gorm 的连接池，这里单独建连。
type pgxConn struct {
	conn *pgx.Conn
}

// PgxDialer 返回用 pgx 直连数据库的 Dialer。
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &pgxConn{conn: conn}, nil
	}
}

func (p *pgxConn) Listen(ctx context.Context, channel string) error {
	_, err := p.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

func (p *pgxConn) WaitForNotification(ctx context.Context) (string, error) {
	n, err := p.conn.WaitForNotification(ctx)
	if err != nil {
		return "", err
	}
	return n.Payload, nil
}

func (p *pgxConn) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}
