package pipeline

import (
	"fmt"
	"strings"

	"github.com/timothy-han/mara/pkg/models"
)

// personaPrompt prefixes every analytical stage so the model holds a
// consistent role across the pipeline.
const personaPrompt = "You are a senior data analyst with a specialty in meta-analysis."

// analysisJSONExample is the exact structure the analysis stage must return.
// %s is the strongest confidence label of the active scheme.
const analysisJSONExample = `
{
  "summary": "A one or two sentence summary of the analysis conclusion.",
  "confidence": "%s",
  "details": {
    "process": "A description of the meta-analysis process used.",
    "regression_models": "The specific meta-regression models produced, including coefficients and statistics.",
    "plots": "A textual description of relevant plots, such as a forest plot or funnel plot."
  }
}
`

// Prompt composition is deterministic: identical inputs always produce a
// byte-identical prompt. No timestamps, no randomness.

func composeFindStudies(query string) string {
	return personaPrompt +
		" Find me high-quality studies that look into the question of: " + query +
		"\nOptimize your search per the following constraints: " +
		"\n1. Search online databases that index published literature, as well as sources such as Google Scholar." +
		"\n2. Find studies per retrospective reference harvesting and prospective forward citation searching." +
		"\n3. Attempt to identify unpublished literature such as dissertations and reports from independent research firms." +
		"\nExclude any studies which either:" +
		"\n1. lack a comparison or control group," +
		"\n2. are purely correlational, that do not include either a randomized-controlled trial, quasi-experimental design, or regression discontinuity" +
		"\nFinally, return these studies in a list of highest quality to lowest, formatting that list by: 'Title, Authors, Date Published.' " +
		"\nInclude 30 high-quality studies, or if fewer than 30, the max available." +
		"\nDo not add any explanatory text."
}

func composeExtractData(studies string) string {
	return personaPrompt +
		" You have been provided with a definitive list of studies below. **Do not search for any other studies or add any studies not on this exact list.**" +
		" For **only** the studies in this list, look up each paper:\n" + studies +
		"\nThen, extract the following data into a markdown table format: " +
		"\n1. Sample size of treatment and comparison groups" +
		"\n2. Cluster sample sizes (i.e. size of classroom/school)" +
		"\n3. Intraclass correlation coefficient (ICC). If not provided, impute 0.20." +
		"\n4. Hedges' g effect size for each outcome (standardized mean difference, adjusted for pre-test if possible)." +
		"\n5. Study design (RCT, quasi-experimental, or RDD)." +
		"\nReturn only the markdown table and nothing else. **Ensure there is one entry per study from the provided list and no duplicates.**"
}

func composeCompaction(table string) string {
	return "You are an expert data processing agent. You have been given a markdown table containing data about academic studies. " +
		"Your task is to convert this table into a compact, machine-readable CSV (Comma-Separated Values) format. " +
		"Do not lose any information. Ensure the header row is simple and all subsequent rows contain the corresponding data points. " +
		"Return only the raw CSV data and nothing else.\n\n" +
		"Here is the markdown table:\n" + table
}

func composeAnalysis(dataset string, scheme models.ConfidenceScheme) string {
	labels := scheme.Labels()
	example := fmt.Sprintf(analysisJSONExample, labels[0])
	return personaPrompt +
		"\nUsing this CSV dataset of academic studies: \n" + dataset +
		"\nPerform a meta-analysis using a multivariate meta-regression model and return the results as a valid JSON object." +
		"\n\n**CRITICAL REQUIREMENT:** Your response MUST be a single, valid JSON object that strictly adheres to the following structure and schema. Do not include any text, markdown formatting, or explanations outside of the JSON object itself." +
		"\n\nHere is an example of the required JSON structure:\n```json\n" + example + "```" +
		"\n\nNow, populate this exact JSON structure based on your analysis:" +
		"\n1. For the `summary` field: Write a one or two sentence summary of your conclusion." +
		fmt.Sprintf("\n2. For the `confidence` field: Determine the confidence level (%s, %s, or %s) based on these criteria:\n", labels[0], labels[1], labels[2]) +
		scheme.CriteriaText() +
		"\n3. For the nested `details.process` field: Describe the analysis process you used." +
		"\n4. For the nested `details.regression_models` field: Show the regression models produced."
}

// composeFollowUp embeds the session's stored analysis, dataset and prior
// turns so the model answers in context of the completed run.
func composeFollowUp(sess *models.Session, analysisJSON, message string) string {
	var b strings.Builder
	b.WriteString("Answer this question: ")
	b.WriteString(message)
	b.WriteString(". Use both the analysis here: \n1. ")
	b.WriteString(analysisJSON)
	b.WriteString(" and the data here: \n2. ")
	b.WriteString(sess.StudiesData)
	if len(sess.History) > 0 {
		b.WriteString("\nPrior conversation turns, oldest first:")
		for _, turn := range sess.History {
			b.WriteString("\n")
			b.WriteString(turn.Role)
			b.WriteString(": ")
			b.WriteString(turn.Content)
		}
	}
	return b.String()
}
