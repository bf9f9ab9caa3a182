// Package auth provides bearer-token validation and claim extraction for the
// Tably API.
//
// # Overview
//
// This package implements the authentication half of the identity pipeline:
// verifying externally issued RS256 tokens against the issuer's rotating key
// set, and mapping validated claims into a canonical Identity. It never
// issues tokens and holds no state beyond the JWKS key cache.
//
// # Key Components
//
// Validator: signature, issuer, audience, and expiry checks backed by a
// rate-limited JWKS cache
//
//	validator, err := auth.NewValidator(auth.ValidatorConfig{
//		IssuerURL: "https://acme.auth0.com/",
//		Audience:  "https://api.tably.app",
//	})
//	claims, err := validator.Validate(ctx, rawToken)
//
// Extractor: claims to Identity mapping with an explicit tenant namespace
//
//	extractor, err := auth.NewExtractor(auth.ClaimsConfig{
//		Namespace: "https://tably.app",
//	})
//	identity, err := extractor.Extract(claims)
//
// Roles: OWNER > MANAGER > {WAITER, CHEF}. An unrecognized role claim
// defaults to OWNER with the fallback flagged on the Identity so callers can
// log and count it.
package auth
