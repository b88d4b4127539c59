package companieshouse

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Endpoint names used for logging and metrics labels.
const (
	EndpointSearchCompanies           = "search_companies"
	EndpointSearchOfficers            = "search_officers"
	EndpointSearchDisqualified        = "search_disqualified_officers"
	EndpointAppointments              = "officer_appointments"
	EndpointRegisteredOffice          = "registered_office_address"
	EndpointProfile                   = "company_profile"
	EndpointInsolvency                = "insolvency"
	EndpointFilingHistory             = "filing_history"
	EndpointCharges                   = "charges"
	EndpointOfficers                  = "company_officers"
	EndpointDisqualified              = "disqualified_officer"
	EndpointPersonsSignificantControl = "persons_with_significant_control"
	EndpointSignificantControl        = "significant_control"
	EndpointDocument                  = "document"
)

// Entity types accepted by SignificantControl.
const (
	EntityIndividual = "individual"
	EntityCorporate  = "corporate"
	EntityLegal      = "legal"
	EntityStatements = "statements"
	EntitySecure     = "secure"
)

var entityPaths = map[string]string{
	EntityIndividual: "individual",
	EntityCorporate:  "corporate-entity",
	EntityLegal:      "legal-person",
	EntityStatements: "persons-with-significant-control-statements",
	EntitySecure:     "super-secure",
}

// SearchCompanies searches companies by name.
func (c *Client) SearchCompanies(ctx context.Context, term string, opts ...CallOption) (*Result, error) {
	return c.get(ctx, EndpointSearchCompanies, c.baseURL, "search/companies", withQuery(opts, term))
}

// SearchOfficers searches officers by name, or disqualified officers when
// disqualified is true.
func (c *Client) SearchOfficers(ctx context.Context, term string, disqualified bool, opts ...CallOption) (*Result, error) {
	if disqualified {
		return c.get(ctx, EndpointSearchDisqualified, c.baseURL, "search/disqualified-officers", withQuery(opts, term))
	}
	return c.get(ctx, EndpointSearchOfficers, c.baseURL, "search/officers", withQuery(opts, term))
}

// Appointments lists the appointments of an officer.
func (c *Client) Appointments(ctx context.Context, officerID string, opts ...CallOption) (*Result, error) {
	id, err := segment("officer id", officerID)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, EndpointAppointments, c.baseURL, "officers/"+id+"/appointments", opts)
}

// RegisteredOfficeAddress fetches a company's registered office address.
func (c *Client) RegisteredOfficeAddress(ctx context.Context, companyNumber string, opts ...CallOption) (*Result, error) {
	return c.company(ctx, EndpointRegisteredOffice, companyNumber, "/registered-office-address", opts)
}

// Profile fetches a company profile.
func (c *Client) Profile(ctx context.Context, companyNumber string, opts ...CallOption) (*Result, error) {
	return c.company(ctx, EndpointProfile, companyNumber, "", opts)
}

// Insolvency fetches a company's insolvency records.
func (c *Client) Insolvency(ctx context.Context, companyNumber string, opts ...CallOption) (*Result, error) {
	return c.company(ctx, EndpointInsolvency, companyNumber, "/insolvency", opts)
}

// FilingHistory lists a company's filings, or fetches one filing when
// transaction is not empty.
func (c *Client) FilingHistory(ctx context.Context, companyNumber, transaction string, opts ...CallOption) (*Result, error) {
	suffix := "/filing-history"
	if transaction != "" {
		suffix += "/" + url.PathEscape(transaction)
	}
	return c.company(ctx, EndpointFilingHistory, companyNumber, suffix, opts)
}

// Charges lists charges against a company, or fetches one charge when
// chargeID is not empty.
func (c *Client) Charges(ctx context.Context, companyNumber, chargeID string, opts ...CallOption) (*Result, error) {
	suffix := "/charges"
	if chargeID != "" {
		suffix += "/" + url.PathEscape(chargeID)
	}
	return c.company(ctx, EndpointCharges, companyNumber, suffix, opts)
}

// Officers lists a company's registered officers.
func (c *Client) Officers(ctx context.Context, companyNumber string, opts ...CallOption) (*Result, error) {
	return c.company(ctx, EndpointOfficers, companyNumber, "/officers", opts)
}

// Disqualified fetches a disqualified officer. natural selects natural
// persons; false selects corporate officers.
func (c *Client) Disqualified(ctx context.Context, officerID string, natural bool, opts ...CallOption) (*Result, error) {
	id, err := segment("officer id", officerID)
	if err != nil {
		return nil, err
	}
	kind := "corporate"
	if natural {
		kind = "natural"
	}
	return c.get(ctx, EndpointDisqualified, c.baseURL, "disqualified-officers/"+kind+"/"+id, opts)
}

// PersonsSignificantControl lists persons with significant control, or their
// statements when statements is true.
func (c *Client) PersonsSignificantControl(ctx context.Context, companyNumber string, statements bool, opts ...CallOption) (*Result, error) {
	suffix := "/persons-with-significant-control"
	if statements {
		suffix += "-statements"
	}
	return c.company(ctx, EndpointPersonsSignificantControl, companyNumber, suffix, opts)
}

// SignificantControl fetches one entity with significant control. An empty
// entityType means EntityIndividual.
func (c *Client) SignificantControl(ctx context.Context, companyNumber, entityID, entityType string, opts ...CallOption) (*Result, error) {
	if entityType == "" {
		entityType = EntityIndividual
	}
	entity, ok := entityPaths[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	id, err := segment("entity id", entityID)
	if err != nil {
		return nil, err
	}
	suffix := "/persons-with-significant-control/" + entity + "/" + id
	return c.company(ctx, EndpointSignificantControl, companyNumber, suffix, opts)
}

// Document fetches the content of a filed document, usually a PDF.
func (c *Client) Document(ctx context.Context, documentID string, opts ...CallOption) (*Result, error) {
	id, err := segment("document id", documentID)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, EndpointDocument, c.documentURL, "document/"+id+"/content", opts)
}

func (c *Client) company(ctx context.Context, endpoint, companyNumber, suffix string, opts []CallOption) (*Result, error) {
	number, err := segment("company number", companyNumber)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, endpoint, c.baseURL, "company/"+number+suffix, opts)
}

func withQuery(opts []CallOption, term string) []CallOption {
	return append(append([]CallOption{}, opts...), func(o *callOptions) {
		o.params.Set("q", term)
	})
}

func segment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s: %w", name, ErrMissingIdentifier)
	}
	return url.PathEscape(value), nil
}
