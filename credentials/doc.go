// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package credentials resolves per-organization provider secrets.

Every outbound provider call is made with credentials belonging to the
organization the request is bound to. Secrets are addressed by the
{orgId}_{PROVIDER}_{KEY} naming convention:

	org123_RESEND_API_KEY
	org123_TWILIO_AUTH_TOKEN
	org123_PAYMENT_CLIENT_SECRET

Three resolver implementations are provided:

  - EnvResolver: reads process environment variables (self-hosted/dev)
  - StaticResolver: in-memory map (tests, local fixtures)
  - AWSResolver: AWS Secrets Manager with a TTL cache (production)

Resolvers are injected into the components that need them; nothing in this
module reads secrets through hidden global state.
*/
package credentials
