package slapdtest

import (
	"context"
	"net"

	"github.com/go-ldap/ldap/v3"
)

// Connect dials the instance and performs a simple bind as the root
// identity, returning a ready-to-use go-ldap connection. This is for
// tests that want a real protocol client against the fixture instead of
// going through the command-line tools. The caller owns the connection
// and must close it.
func (s *Server) Connect(ctx context.Context) (*ldap.Conn, error) {
	return dialAndBind(ctx, s.uri, s.RootDN(), s.RootPW())
}

func dialAndBind(ctx context.Context, uri, bindDN, bindPW string) (*ldap.Conn, error) {
	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := ldap.DialURL(uri, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, wrapHarnessError("Connect", uri, err)
	}
	if err := conn.Bind(bindDN, bindPW); err != nil {
		_ = conn.Close()
		return nil, wrapHarnessError("Bind", uri, err)
	}
	return conn, nil
}
