// Package companieshouse is a thin client for the Companies House REST API.
//
// Every endpoint method builds a path, sends one GET through a
// rate-limit-aware transport and classifies the response:
//
//	client, err := companieshouse.New(companieshouse.WithToken(key))
//	if err != nil {
//		return err
//	}
//
//	res, err := client.Profile(ctx, "00000006",
//		companieshouse.WithIgnore(http.StatusNotFound))
//	if err != nil {
//		return err
//	}
//	if res.Ignored() {
//		return nil
//	}
//
//	var profile map[string]any
//	if err := res.DecodeJSON(&profile); err != nil {
//		return err
//	}
//
// When a response reports an exhausted quota (X-Ratelimit-Remain is "0" or
// missing) the transport sleeps until X-Ratelimit-Reset plus a one second
// margin before returning it. The request itself is never retried.
//
// The access token comes from WithToken, or else the CompaniesHouseKey and
// COMPANIES_HOUSE_KEY environment variables. It is sent both as the
// access_token query parameter and as the basic auth username.
package companieshouse
