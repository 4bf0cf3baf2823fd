/*
Package ddns keeps one Cloudflare A record in sync with the host's public IPv4 address.

Usage will always start with [ddns.New],
which returns the DDNSClient implementation.
New requires the record's subdomain, a logger, a [Provider] (usually from [UsingCloudflare])
and a [Store] (usually a [Cache] from [LoadCache]).

Each call to RunDDNS resolves the public IP, looks up the zone and record identifiers
unless the store already holds them, and then overwrites the record.
Scheduling, retries and record creation are left to the caller.
*/
package ddns
