/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package content

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/depotdl/depotdl/internal/version"
	"github.com/depotdl/depotdl/pkg/filter"
)

// BranchPasswordHeader carries the branch password on app info requests.
const BranchPasswordHeader = "X-Branch-Password"

const (
	// DefaultRetries is how many times a failed request is retried.
	DefaultRetries = 4
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 2 * time.Minute
)

// options are the settings an HTTPClient is built with.
type options struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	retries    uint64
	password   string
	log        logrus.FieldLogger
}

// Option configures an HTTPClient.
type Option func(*options)

// WithURL sets the base URL of the content service.
func WithURL(u string) Option {
	return func(o *options) {
		o.url = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n uint64) Option {
	return func(o *options) {
		o.retries = n
	}
}

// WithBranchPassword sets the password used to resolve protected branches.
func WithBranchPassword(p string) Option {
	return func(o *options) {
		o.password = p
	}
}

// WithLogger sets the logger used for retries and progress.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = l
	}
}

// HTTPClient talks to a content service over its JSON API:
//
//	POST   /v1/sessions                     open a session
//	DELETE /v1/sessions/{token}             close it
//	GET    /v1/apps/{app}/branches/{branch} build id and depot manifests of a branch
//	GET    /v1/servers?cell={cell}          content servers, best first
//	GET    {server}/depot/{depot}/manifest/{manifest}
//	GET    {server}/depot/{depot}/chunk/{sha1}
type HTTPClient struct {
	opts options

	mu    sync.Mutex
	token string
	cell  uint32
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds an HTTPClient. A base URL is required.
func NewHTTPClient(opts ...Option) (*HTTPClient, error) {
	c := &HTTPClient{opts: options{retries: DefaultRetries, timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(&c.opts)
	}
	if c.opts.url == "" {
		return nil, errors.New("content service URL is required")
	}
	if _, err := url.Parse(c.opts.url); err != nil {
		return nil, errors.Wrap(err, "invalid content service URL")
	}
	if c.opts.httpClient == nil {
		c.opts.httpClient = &http.Client{Timeout: c.opts.timeout}
	}
	if c.opts.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.opts.log = l
	}
	return c, nil
}

type sessionRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type sessionResponse struct {
	Token  string `json:"token"`
	CellID uint32 `json:"cellId"`
}

// Connect opens a session. Anonymous credentials are allowed.
func (c *HTTPClient) Connect(ctx context.Context, creds Credentials) error {
	body, err := json.Marshal(sessionRequest{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return err
	}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, c.opts.url+"/v1/sessions", nil, body, &resp); err != nil {
		return errors.Wrap(err, "unable to open session")
	}
	if resp.Token == "" {
		return errors.New("content service returned an empty session token")
	}
	c.mu.Lock()
	c.token, c.cell = resp.Token, resp.CellID
	c.mu.Unlock()
	return nil
}

// Disconnect closes the session. It is a no-op without one.
func (c *HTTPClient) Disconnect() error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.mu.Unlock()
	if token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return c.do(ctx, http.MethodDelete, c.opts.url+"/v1/sessions/"+url.PathEscape(token), header, nil, nil)
}

// depotInfo is one depot as published on a branch.
type depotInfo struct {
	Manifest string `json:"manifest"`
	OSList   string `json:"oslist,omitempty"`
	Entitled bool   `json:"entitled"`
}

// branchInfo is the state of an application branch.
type branchInfo struct {
	BuildID uint32               `json:"buildId"`
	Depots  map[string]depotInfo `json:"depots"`
}

func (c *HTTPClient) branch(ctx context.Context, appID uint32, branch, password string) (*branchInfo, error) {
	if branch == "" {
		branch = DefaultBranch
	}
	header := http.Header{}
	if password != "" {
		header.Set(BranchPasswordHeader, password)
	}
	u := fmt.Sprintf("%s/v1/apps/%d/branches/%s", c.opts.url, appID, url.PathEscape(branch))
	var info branchInfo
	if err := c.do(ctx, http.MethodGet, u, header, nil, &info); err != nil {
		return nil, errors.Wrapf(err, "unable to get branch %q of app %d", branch, appID)
	}
	return &info, nil
}

// BuildNumber returns the current build of an application branch.
func (c *HTTPClient) BuildNumber(ctx context.Context, appID uint32, branch string) (uint32, error) {
	info, err := c.branch(ctx, appID, branch, c.opts.password)
	if err != nil {
		return 0, err
	}
	return info.BuildID, nil
}

// ManifestID returns the manifest a depot currently has on a branch.
func (c *HTTPClient) ManifestID(ctx context.Context, depotID, appID uint32, branch string) (uint64, error) {
	info, err := c.branch(ctx, appID, branch, c.opts.password)
	if err != nil {
		return InvalidManifestID, err
	}
	return info.manifest(depotID, appID, branch)
}

func (b *branchInfo) manifest(depotID, appID uint32, branch string) (uint64, error) {
	d, ok := b.Depots[strconv.FormatUint(uint64(depotID), 10)]
	if !ok || d.Manifest == "" {
		return InvalidManifestID, errors.Errorf("depot %d of app %d has no manifest on branch %q", depotID, appID, branch)
	}
	id, err := strconv.ParseUint(d.Manifest, 10, 64)
	if err != nil {
		return InvalidManifestID, errors.Wrapf(err, "invalid manifest id for depot %d", depotID)
	}
	return id, nil
}

type serverList struct {
	Servers []string `json:"servers"`
}

func (c *HTTPClient) servers(ctx context.Context, cfg Config) ([]string, error) {
	cell := cfg.CellID
	if cell == 0 {
		c.mu.Lock()
		cell = c.cell
		c.mu.Unlock()
	}
	var list serverList
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v1/servers?cell=%d", c.opts.url, cell), nil, nil, &list); err != nil {
		return nil, errors.Wrap(err, "unable to list content servers")
	}
	if len(list.Servers) == 0 {
		return nil, errors.Errorf("no content servers available in cell %d", cell)
	}
	if len(list.Servers) > cfg.MaxServers {
		list.Servers = list.Servers[:cfg.MaxServers]
	}
	return list.Servers, nil
}

// Manifest lists the files of one depot version.
type Manifest struct {
	DepotID    uint32         `json:"depotId"`
	ManifestID uint64         `json:"manifestId,string"`
	Files      []ManifestFile `json:"files"`
}

// ManifestFile is a file of a manifest, split in chunks.
type ManifestFile struct {
	Name   string  `json:"name"`
	Size   int64   `json:"size"`
	SHA1   string  `json:"sha1"`
	Chunks []Chunk `json:"chunks"`
}

// Chunk is a piece of a file addressed by the sha1 of its content.
type Chunk struct {
	ID     string `json:"id"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// Download fetches the depots of the request into the install directory.
func (c *HTTPClient) Download(ctx context.Context, req Request) error {
	c.mu.Lock()
	connected := c.token != ""
	c.mu.Unlock()
	if !connected {
		return errors.New("not connected to the content service")
	}

	cfg := req.Config
	cfg.Normalize()

	password := cfg.BranchPassword
	if password == "" {
		password = c.opts.password
	}
	info, err := c.branch(ctx, req.AppID, req.Branch, password)
	if err != nil {
		return err
	}
	depots, err := c.selectDepots(info, req, cfg)
	if err != nil {
		return err
	}
	servers, err := c.servers(ctx, cfg)
	if err != nil {
		return err
	}

	for _, depotID := range depots {
		manifestID, forced := cfg.ForcedManifest()
		if !forced {
			if manifestID, err = info.manifest(depotID, req.AppID, req.Branch); err != nil {
				return err
			}
		}
		log := c.opts.log.WithFields(logrus.Fields{"depot": depotID, "manifest": manifestID})
		log.Debug("downloading depot")
		if err := c.downloadDepot(ctx, log, servers, depotID, manifestID, cfg); err != nil {
			return errors.Wrapf(err, "depot %d manifest %d", depotID, manifestID)
		}
	}
	return nil
}

// selectDepots picks the depots a request covers and checks entitlement.
func (c *HTTPClient) selectDepots(info *branchInfo, req Request, cfg Config) ([]uint32, error) {
	if req.DepotID != InvalidDepotID {
		d, ok := info.Depots[strconv.FormatUint(uint64(req.DepotID), 10)]
		if !req.ForceDepot && (!ok || !d.Entitled) {
			return nil, errors.Errorf("depot %d is not available from this account", req.DepotID)
		}
		return []uint32{req.DepotID}, nil
	}
	if _, forced := cfg.ForcedManifest(); forced {
		return nil, errors.New("a manifest id requires a depot id")
	}
	var ids []uint32
	for k, d := range info.Depots {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			continue
		}
		if !d.Entitled && !req.ForceDepot {
			continue
		}
		if !cfg.DownloadAllPlatforms && d.OSList != "" && !matchesOS(d.OSList) {
			continue
		}
		ids = append(ids, uint32(id))
	}
	if len(ids) == 0 {
		return nil, errors.Errorf("no depots of app %d available for download", req.AppID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func matchesOS(oslist string) bool {
	goos := runtime.GOOS
	if goos == "darwin" {
		goos = "macos"
	}
	for _, name := range strings.Split(oslist, ",") {
		if strings.TrimSpace(name) == goos {
			return true
		}
	}
	return false
}

func (c *HTTPClient) downloadDepot(ctx context.Context, log logrus.FieldLogger, servers []string, depotID uint32, manifestID uint64, cfg Config) error {
	var m Manifest
	manifestPath := fmt.Sprintf("/depot/%d/manifest/%d", depotID, manifestID)
	if err := c.fromAnyServer(ctx, servers, manifestPath, &m); err != nil {
		return errors.Wrap(err, "unable to fetch manifest")
	}

	if err := os.MkdirAll(cfg.InstallDirectory, 0755); err != nil {
		return err
	}
	if cfg.DownloadManifestOnly {
		return writeManifestListing(cfg.InstallDirectory, depotID, manifestID, &m)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxDownloads)
	var staged []*stagedFile
	defer func() {
		for _, s := range staged {
			s.discard()
		}
	}()
	n := 0
	for _, f := range m.Files {
		if !cfg.Files.Match(f.Name) {
			continue
		}
		dst, err := securejoin.SecureJoin(cfg.InstallDirectory, filepath.FromSlash(f.Name))
		if err != nil {
			g.Wait()
			return err
		}
		if upToDate(dst, f, cfg.VerifyAll) {
			log.WithField("file", f.Name).Debug("file is up to date")
			continue
		}
		out, err := stageFile(dst, f.Size)
		if err != nil {
			g.Wait()
			return err
		}
		staged = append(staged, out)
		for _, ch := range f.Chunks {
			ch := ch
			server := servers[n%len(servers)]
			n++
			g.Go(func() error {
				return c.fetchChunk(gctx, server, depotID, ch, out.File)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, s := range staged {
		if err := s.commit(); err != nil {
			return errors.Wrapf(err, "unable to install %s", s.dst)
		}
	}
	return nil
}

func (c *HTTPClient) fetchChunk(ctx context.Context, server string, depotID uint32, ch Chunk, out *os.File) error {
	u := fmt.Sprintf("%s/depot/%d/chunk/%s", strings.TrimSuffix(server, "/"), depotID, url.PathEscape(ch.ID))
	return c.retry(ctx, func() error {
		var buf bytes.Buffer
		if err := c.do(ctx, http.MethodGet, u, nil, nil, &buf); err != nil {
			return err
		}
		sum := sha1.Sum(buf.Bytes())
		if !strings.EqualFold(hex.EncodeToString(sum[:]), ch.ID) {
			return errors.Errorf("chunk %s failed verification", ch.ID)
		}
		if _, err := out.WriteAt(buf.Bytes(), ch.Offset); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	})
}

func (c *HTTPClient) fromAnyServer(ctx context.Context, servers []string, p string, out interface{}) error {
	i := 0
	return c.retry(ctx, func() error {
		server := strings.TrimSuffix(servers[i%len(servers)], "/")
		i++
		return c.do(ctx, http.MethodGet, server+p, nil, nil, out)
	})
}

func (c *HTTPClient) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.opts.retries), ctx)
	return backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		c.opts.log.WithError(err).Debugf("retrying in %s", d)
	})
}

// statusError is a non-2xx answer of the service.
type statusError struct {
	URL    string
	Status string
	Code   int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("failed to fetch %s : %s", e.URL, e.Status)
}

// do performs a request. JSON bodies are decoded into out; a *bytes.Buffer out
// receives the raw body. Client errors are permanent and not retried.
func (c *HTTPClient) do(ctx context.Context, method, u string, header http.Header, body []byte, out interface{}) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return backoff.Permanent(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", version.GetUserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &statusError{URL: u, Status: resp.Status, Code: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(serr)
		}
		return serr
	}
	switch o := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		_, err = io.Copy(o, resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
}

func upToDate(dst string, f ManifestFile, verify bool) bool {
	fi, err := os.Stat(dst)
	if err != nil || fi.Size() != f.Size {
		return false
	}
	if !verify {
		return true
	}
	fh, err := os.Open(dst)
	if err != nil {
		return false
	}
	defer fh.Close()
	h := sha1.New()
	if _, err := io.Copy(h, fh); err != nil {
		return false
	}
	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), f.SHA1)
}

// stagedFile is assembled next to dst and replaces it only once every chunk
// has been written, so an interrupted download never leaves a file of the
// expected size behind.
type stagedFile struct {
	*os.File
	dst  string
	done bool
}

func stageFile(dst string, size int64) (*stagedFile, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.partial")
	if err != nil {
		return nil, err
	}
	s := &stagedFile{File: f, dst: dst}
	if err := f.Truncate(size); err != nil {
		s.discard()
		return nil, err
	}
	return s, nil
}

func (s *stagedFile) commit() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Chmod(s.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(s.Name(), s.dst); err != nil {
		return err
	}
	s.done = true
	return nil
}

// discard removes the staged file unless it was committed.
func (s *stagedFile) discard() {
	if s.done {
		return
	}
	s.Close()
	os.Remove(s.Name())
	s.done = true
}

func writeManifestListing(dir string, depotID uint32, manifestID uint64, m *Manifest) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Content Manifest for Depot %d\n\n", depotID)
	fmt.Fprintf(&b, "Manifest ID / date     : %d\n", manifestID)
	fmt.Fprintf(&b, "Total number of files  : %d\n\n", len(m.Files))
	fmt.Fprintf(&b, "%14s %40s %s\n", "Size", "SHA1", "Name")
	files := append([]ManifestFile(nil), m.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	for _, f := range files {
		fmt.Fprintf(&b, "%14d %40s %s\n", f.Size, f.SHA1, path.Clean(filter.Normalize(f.Name)))
	}
	name := filepath.Join(dir, fmt.Sprintf("manifest_%d_%d.txt", depotID, manifestID))
	return os.WriteFile(name, []byte(b.String()), 0644)
}
