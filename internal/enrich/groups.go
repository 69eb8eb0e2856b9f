package enrich

import (
	"fmt"

	"github.com/clearbound/enrich-cli/internal/collect"
	"github.com/clearbound/enrich-cli/internal/model"
)

// fieldGroup is one independently collected and extracted slice of the
// profile schema. Groups fan out concurrently and never block each other.
type fieldGroup struct {
	name   string
	fields []string
	tasks  func(company string) []collect.SearchTask
}

func fieldGroups(maxResults, followTop int) []fieldGroup {
	return []fieldGroup{
		{
			name:   "identity",
			fields: []string{model.FieldName, model.FieldWebsite, model.FieldDescription, model.FieldIndustry, model.FieldLocation},
			tasks: func(company string) []collect.SearchTask {
				return []collect.SearchTask{
					{Query: fmt.Sprintf("%s company overview", company), MaxResults: maxResults, FollowTop: followTop},
				}
			},
		},
		{
			name:   "scale",
			fields: []string{model.FieldSize, model.FieldEmployees, model.FieldRevenue, model.FieldFoundedYear},
			tasks: func(company string) []collect.SearchTask {
				return []collect.SearchTask{
					{Query: fmt.Sprintf("%s number of employees revenue founded", company), MaxResults: maxResults},
				}
			},
		},
		{
			name:   "people",
			fields: []string{model.FieldCEO, model.FieldCTO, model.FieldCFO},
			tasks: func(company string) []collect.SearchTask {
				return []collect.SearchTask{
					{Query: fmt.Sprintf("%s CEO CTO CFO leadership team", company), MaxResults: maxResults},
				}
			},
		},
		{
			name:   "presence",
			fields: []string{model.FieldProductsServices, model.FieldSocialLinks},
			tasks: func(company string) []collect.SearchTask {
				return []collect.SearchTask{
					{Query: fmt.Sprintf("%s products and services", company), MaxResults: maxResults},
					{Query: company, SiteFilter: "linkedin.com", MaxResults: 2},
					{Query: company, SiteFilter: "x.com", MaxResults: 2},
				}
			},
		},
	}
}
