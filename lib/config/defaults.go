// Copyright (C) The adobe-code-cli Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package config

// DefaultYAML is the annotated default configuration printed by "aep
// config-defaults". Loading it must produce aep.DefaultConfig()
// exactly; a test enforces that.
var DefaultYAML = []byte(`# Configuration for the aep command line tool.
#
# Copy this file to ~/.config/aep/aep.yml and fill in the credentials
# from your Adobe developer console project. Every entry can also be
# set with the matching AEP_* environment variable, which takes
# precedence over this file.

# Client ID (API key) of the developer console project.
ClientID: ""

# Client secret for the OAuth server-to-server credential flow.
ClientSecret: ""

# IMS organization ID, e.g. 1234567890ABCDEF@AdobeOrg.
OrgID: ""

# Technical account ID and private key path. Only needed for the
# legacy JWT service account flow; leave empty to use the OAuth
# server-to-server flow.
TechnicalAccountID: ""
PrivateKeyFile: ""

# Static access token. When set, no token is requested from IMS.
AccessToken: ""

# OAuth scopes requested by the server-to-server flow.
Scopes:
  - openid
  - AdobeID
  - read_organizations
  - additional_info.projectedProductContext

# Sandbox to address, sent as the x-sandbox-name header.
SandboxName: prod

# Tenant ID, without the leading underscore. Determines the
# namespace custom schema fields live under.
TenantID: ""

APIHost: platform.adobe.io
IMSHost: ims-na1.adobelogin.com

# Accept unverified TLS certificates. Test servers only.
Insecure: false

# Timeout for each API call, including all retries.
RequestTimeout: 30s

Upload:
  # Number of files uploaded concurrently by bulk ingestion.
  MaxConcurrent: 3
  # Files larger than this are uploaded in Content-Range chunks.
  ChunkSize: 10MiB

Poll:
  # How often, and for how long, to poll a batch that is being
  # promoted before giving up.
  Interval: 5s
  Timeout: 5m

# Profiles are partial configs overlaid on the settings above when
# selected with -profile (or a WithProfile call), e.g.:
#
# Profiles:
#   dev:
#     SandboxName: dev
#     TenantID: acmecorpdev
`)
