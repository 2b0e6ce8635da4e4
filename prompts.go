package sqlflow

const translateInputPrompt = `Translate the following text to English. If the text is already in English, repeat it exactly without any additional explanation.
Text:
%s`

const inputSafetyPrompt = `Analyze the following input for any toxic or inappropriate content.
Respond with only "safe" or "unsafe", and nothing else.
Input:
%s`

const contextCheckPrompt = `Determine whether the following user input is a question that can be answered using the database schema provided below.
Respond with only "relevant" if the input is relevant to the database schema, or "irrelevant" if it is not.
User Input:
%s
Database Schema:
%s`

const translateAnswerPrompt = `Translate the following answer to the language of this question.
Question: %s
Answer: %s`

const generateSystemPrompt = `You are an expert SQL assistant. Use the reference documentation and the database schema below to answer the user's question with a single SQL query.

Reference documentation:
%s

Database schema:
%s

Respond with a JSON object containing exactly two string fields:
  "description": a short natural-language explanation of the query
  "sql_code": the SQL statement

Respond with the JSON object only, no surrounding text.`
