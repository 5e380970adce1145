/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package httpd

import (
	"net/http"
	"strings"

	"github.com/gobwas/glob"
)

const landingPage = `<!DOCTYPE html>
<html>
<head><title>Welcome</title></head>
<body>
<h1>It works!</h1>
<p>This is the default web page for this server.</p>
<p>The web server software is running but no content has been added, yet.</p>
</body>
</html>
`

const forbiddenPage = `<!DOCTYPE html>
<html>
<head><title>403 Forbidden</title></head>
<body>
<h1>Forbidden</h1>
<p>You don't have permission to access this resource.</p>
</body>
</html>
`

const errorPage = `<!DOCTYPE html>
<html>
<head><title>500 Internal Server Error</title></head>
<body>
<h1>Internal Server Error</h1>
<p>The server encountered an internal error and was unable to complete your request.</p>
</body>
</html>
`

const notFoundPage = `<!DOCTYPE html>
<html>
<head><title>404 Not Found</title></head>
<body>
<h1>Not Found</h1>
<p>The requested URL was not found on this server.</p>
</body>
</html>
`

// policyRule maps a path pattern onto a canned response. Rules are
// evaluated in order, first match wins.
type policyRule struct {
	pattern string
	status  int
	body    string
	g       glob.Glob
}

// the fixed response policy: bland landing page at the root, denials
// on admin-looking paths, a fake error for anything php, missing
// static assets, and a shrug for the rest
var policySpec = []policyRule{
	{pattern: `/`, status: http.StatusOK, body: landingPage},
	{pattern: `/index.html`, status: http.StatusOK, body: landingPage},
	{pattern: `/admin*`, status: http.StatusForbidden, body: forbiddenPage},
	{pattern: `/wp-admin*`, status: http.StatusForbidden, body: forbiddenPage},
	{pattern: `/administrator*`, status: http.StatusForbidden, body: forbiddenPage},
	{pattern: `/phpmyadmin*`, status: http.StatusForbidden, body: forbiddenPage},
	{pattern: `/manager*`, status: http.StatusForbidden, body: forbiddenPage},
	{pattern: `/.env*`, status: http.StatusForbidden, body: forbiddenPage},
	{pattern: `/.git*`, status: http.StatusForbidden, body: forbiddenPage},
	{pattern: `*.php`, status: http.StatusInternalServerError, body: errorPage},
	{pattern: `/static/*`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `/assets/*`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.js`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.css`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.png`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.jpg`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.gif`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.ico`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.svg`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.woff*`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.map`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.txt`, status: http.StatusNotFound, body: notFoundPage},
	{pattern: `*.xml`, status: http.StatusNotFound, body: notFoundPage},
}

// policyTable is the compiled, immutable response policy built once at
// startup. Swapping policies is a whole table replace, never per rule
// mutation.
type policyTable struct {
	rules []policyRule
}

func newPolicyTable() (*policyTable, error) {
	rules := make([]policyRule, 0, len(policySpec))
	for _, r := range policySpec {
		// no separator: * is allowed to cross path segments
		g, err := glob.Compile(r.pattern)
		if err != nil {
			return nil, err
		}
		r.g = g
		rules = append(rules, r)
	}
	return &policyTable{rules: rules}, nil
}

// respond resolves the status and body for a request path.
func (pt *policyTable) respond(pth string) (int, string) {
	lp := strings.ToLower(pth)
	for _, r := range pt.rules {
		if r.g.Match(lp) {
			return r.status, r.body
		}
	}
	return http.StatusOK, landingPage
}
