package slapdtest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient builds a Client whose tool paths point at the fake scripts
// from fakeToolConfig, recording invocations for inspection.
func fakeClient(t *testing.T) (*Client, *Config) {
	t.Helper()
	cfg := fakeToolConfig(t)
	writeFakeTool(t, cfg.BinDir, "ldapwhoami", `echo "$@" > "$(dirname "$0")/ldapwhoami.args"`)
	writeFakeTool(t, cfg.BinDir, "ldapsearch",
		`echo "$@" > "$(dirname "$0")/ldapsearch.args"`+"\nprintf '%s' '"+fixtureLDIF+"'")
	return NewClient(cfg, "ldap://127.0.0.1:9999/"), cfg
}

func recordedArgs(t *testing.T, cfg *Config, tool string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.BinDir, tool+".args"))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestClientWhoami(t *testing.T) {
	client, cfg := fakeClient(t)

	require.NoError(t, client.Whoami(context.Background()))

	args := recordedArgs(t, cfg, "ldapwhoami")
	assert.Contains(t, args, "-x")
	assert.Contains(t, args, "-D "+cfg.RootDN())
	assert.Contains(t, args, "-w "+cfg.RootPW)
	assert.Contains(t, args, "-H ldap://127.0.0.1:9999/")
}

func TestClientWhoamiFailure(t *testing.T) {
	client, cfg := fakeClient(t)
	writeFakeTool(t, cfg.BinDir, "ldapwhoami", "exit 49")

	err := client.Whoami(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)

	var he *HarnessError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ldapwhoami", he.Op)
}

func TestClientAddStreamsLDIF(t *testing.T) {
	client, cfg := fakeClient(t)

	ldif := "dn: ou=people," + cfg.Suffix + "\nobjectClass: organizationalUnit\nou: people\n"
	require.NoError(t, client.Add(context.Background(), ldif))

	streamed, err := os.ReadFile(filepath.Join(cfg.BinDir, "ldapadd.in"))
	require.NoError(t, err)
	assert.Equal(t, ldif, string(streamed))
}

func TestClientAddFailure(t *testing.T) {
	client, cfg := fakeClient(t)
	writeFakeTool(t, cfg.BinDir, "ldapadd", "exit 68")

	err := client.Add(context.Background(), "dn: dc=x\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)

	var he *HarnessError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ldapadd", he.Op)
}

func TestClientSearchDefaults(t *testing.T) {
	client, cfg := fakeClient(t)

	records, err := client.Search(context.Background(), SearchRequest{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "dc=slapd-test,dc=go-ldap,dc=org", records[0].DN)

	args := recordedArgs(t, cfg, "ldapsearch")
	assert.Contains(t, args, "-b "+cfg.Suffix, "base defaults to the suffix")
	assert.Contains(t, args, "-s sub")
	assert.Contains(t, args, "-LL")
	assert.Contains(t, args, "(objectClass=*)", "filter defaults to match-everything")
}

func TestClientSearchExplicitRequest(t *testing.T) {
	client, cfg := fakeClient(t)

	_, err := client.Search(context.Background(), SearchRequest{
		BaseDN:     "ou=people," + cfg.Suffix,
		Scope:      "one",
		Filter:     "(cn=Manager)",
		Attributes: []string{"cn", "objectClass"},
		ExtraArgs:  []string{"-z", "10"},
	})
	require.NoError(t, err)

	args := recordedArgs(t, cfg, "ldapsearch")
	assert.Contains(t, args, "-b ou=people,"+cfg.Suffix)
	assert.Contains(t, args, "-s one")
	assert.Contains(t, args, "-z 10")
	assert.Contains(t, args, "(cn=Manager) cn objectClass")
}

func TestClientSearchFailure(t *testing.T) {
	client, cfg := fakeClient(t)
	writeFakeTool(t, cfg.BinDir, "ldapsearch", "exit 32")

	_, err := client.Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
}

func TestClientSearchDecodeError(t *testing.T) {
	client, cfg := fakeClient(t)
	// Tool succeeds but emits output without the version marker.
	writeFakeTool(t, cfg.BinDir, "ldapsearch", `printf 'dn: dc=x\n\n'`)

	_, err := client.Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpectedVersion)
}

func TestClientSearchRaw(t *testing.T) {
	client, _ := fakeClient(t)

	raw, err := client.SearchRaw(context.Background(), SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, fixtureLDIF, string(raw))
}
