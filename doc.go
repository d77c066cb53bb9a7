// Package slapdtest boots an ephemeral, disposable OpenLDAP (slapd)
// server for the duration of a test run, seeds it with a minimal data
// set, and provides helpers to query it and decode the LDIF responses.
//
// The package shells out to the standard OpenLDAP command-line tools
// (slapd, slaptest, ldapadd, ldapsearch, ldapwhoami); it is a test
// fixture, not a directory client library. Consumers that want a real
// protocol client against the fixture can call [Server.Connect], which
// returns a bound go-ldap connection.
//
// # Basic Usage
//
//	cfg := slapdtest.DefaultConfig()
//	srv, err := slapdtest.NewServer(cfg)
//	if err != nil {
//		t.Fatal(err)
//	}
//	defer srv.Close()
//
//	if err := srv.Start(context.Background()); err != nil {
//		t.Fatal(err)
//	}
//
//	records, err := srv.Search(context.Background(), slapdtest.SearchRequest{})
//	if err != nil {
//		t.Fatal(err)
//	}
//	for _, r := range records {
//		fmt.Println(r.DN)
//	}
//
// After Start returns, the directory already contains two seed entries:
// the organization object at the suffix and an organizationalRole at the
// root DN, so the instance behaves as "ready and initialized" rather
// than merely empty.
//
// # Lifecycle
//
// A Server moves between Stopped and Running via Start, Stop, Restart
// and Wait. Restart wipes the instance's working directory, so it is an
// explicit reset, not a warm restart. Close is the mandatory release:
// it stops a running server and removes the temporary directory, and is
// safe to defer immediately after NewServer.
//
// Lifecycle operations are synchronous and must not be called
// concurrently against the same Server; callers are responsible for
// serializing access.
//
// # Error Handling
//
// The package defines sentinel errors for the failure classes callers
// typically branch on:
//   - ErrConfigInvalid: slaptest rejected the generated configuration
//   - ErrExitedBeforeReady: slapd terminated during the readiness wait
//   - ErrStartupTimeout: slapd did not become ready in time
//   - ErrOperationFailed: an ldap tool exited non-zero
//   - ErrExpectedVersion, ErrMissingDN, ErrBadLine: malformed LDIF
//
// Hosts without a local slapd installation can use [StartContainer]
// instead, which runs OpenLDAP in a Docker container via
// testcontainers and exposes the same root-identity surface.
package slapdtest
