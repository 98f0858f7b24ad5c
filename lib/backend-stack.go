package lib

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdkapigatewayv2alpha/v2"
	"github.com/aws/aws-cdk-go/awscdkapigatewayv2integrationsalpha/v2"
	"github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

type BackendStackProps struct {
	awscdk.StackProps
}

func NewBackendStack(scope constructs.Construct, id string, props *BackendStackProps) awscdk.Stack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}
	stack := awscdk.NewStack(scope, &id, &sprops)

	// DynamoDB Tables
	submissionsTable := awsdynamodb.NewTable(stack, jsii.String("FormSubmissions"), &awsdynamodb.TableProps{
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("id"),
			Type: awsdynamodb.AttributeType_NUMBER,
		},
		BillingMode: awsdynamodb.BillingMode_PAY_PER_REQUEST,
		TableName:   jsii.String("FormSubmissions"),
	})

	emailsTable := awsdynamodb.NewTable(stack, jsii.String("FormEmails"), &awsdynamodb.TableProps{
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("email"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		BillingMode: awsdynamodb.BillingMode_PAY_PER_REQUEST,
		TableName:   jsii.String("FormEmails"),
	})

	countersTable := awsdynamodb.NewTable(stack, jsii.String("FormCounters"), &awsdynamodb.TableProps{
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("name"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		BillingMode: awsdynamodb.BillingMode_PAY_PER_REQUEST,
		TableName:   jsii.String("FormCounters"),
	})

	// Lambda execution role
	lambdaRole := awsiam.NewRole(stack, jsii.String("LambdaExecutionRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("lambda.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("service-role/AWSLambdaBasicExecutionRole")),
		},
	})

	// Grant DynamoDB permissions
	submissionsTable.GrantReadWriteData(lambdaRole)
	emailsTable.GrantReadWriteData(lambdaRole)
	countersTable.GrantReadWriteData(lambdaRole)

	handlerEnv := &map[string]*string{
		"SUBMISSIONS_TABLE":  submissionsTable.TableName(),
		"EMAILS_TABLE":       emailsTable.TableName(),
		"COUNTERS_TABLE":     countersTable.TableName(),
		"MOMENTO_AUTH_TOKEN": jsii.String(os.Getenv("MOMENTO_AUTH_TOKEN")),
		"CACHE_NAME":         jsii.String(os.Getenv("CACHE_NAME")),
	}

	newHandler := func(name, entry string) awscdklambdagoalpha.GoFunction {
		return awscdklambdagoalpha.NewGoFunction(stack, jsii.String(name), &awscdklambdagoalpha.GoFunctionProps{
			Runtime: awslambda.Runtime_PROVIDED_AL2(),
			Entry:   jsii.String(entry),
			Role:    lambdaRole,
			Bundling: &awscdklambdagoalpha.BundlingOptions{
				Environment: &map[string]*string{
					"GOOS":   jsii.String("linux"),
					"GOARCH": jsii.String("amd64"),
				},
			},
			Environment: handlerEnv,
		})
	}

	submitLambda := newHandler("SubmitFunction", "lambda/submit")
	getSubmissionsLambda := newHandler("GetSubmissionsFunction", "lambda/get-submissions")
	searchSubmissionsLambda := newHandler("SearchSubmissionsFunction", "lambda/search-submissions")
	getSubmissionLambda := newHandler("GetSubmissionFunction", "lambda/get-submission")
	deleteSubmissionLambda := newHandler("DeleteSubmissionFunction", "lambda/delete-submission")
	duplicateStatsLambda := newHandler("DuplicateStatsFunction", "lambda/duplicate-stats")
	existingEmailsLambda := newHandler("ExistingEmailsFunction", "lambda/existing-emails")

	// HTTP API
	httpApi := awscdkapigatewayv2alpha.NewHttpApi(stack, jsii.String("FormSystemApi"), &awscdkapigatewayv2alpha.HttpApiProps{
		ApiName: jsii.String("FormSystem API"),
		CorsPreflight: &awscdkapigatewayv2alpha.CorsPreflightOptions{
			AllowHeaders: jsii.Strings("Authorization", "Content-Type"),
			AllowMethods: &[]awscdkapigatewayv2alpha.CorsHttpMethod{
				awscdkapigatewayv2alpha.CorsHttpMethod_GET,
				awscdkapigatewayv2alpha.CorsHttpMethod_POST,
				awscdkapigatewayv2alpha.CorsHttpMethod_DELETE,
				awscdkapigatewayv2alpha.CorsHttpMethod_OPTIONS,
			},
			AllowOrigins: jsii.Strings("*"),
		},
	})

	addRoute := func(path string, method awscdkapigatewayv2alpha.HttpMethod, name string, handler awscdklambdagoalpha.GoFunction) {
		httpApi.AddRoutes(&awscdkapigatewayv2alpha.AddRoutesOptions{
			Path: jsii.String(path),
			Methods: &[]awscdkapigatewayv2alpha.HttpMethod{
				method,
			},
			Integration: awscdkapigatewayv2integrationsalpha.NewHttpLambdaIntegration(
				jsii.String(name),
				handler,
				&awscdkapigatewayv2integrationsalpha.HttpLambdaIntegrationProps{},
			),
		})
	}

	addRoute("/submissions/submit", awscdkapigatewayv2alpha.HttpMethod_POST, "SubmitIntegration", submitLambda)
	addRoute("/submissions", awscdkapigatewayv2alpha.HttpMethod_GET, "GetSubmissionsIntegration", getSubmissionsLambda)
	addRoute("/submissions/search", awscdkapigatewayv2alpha.HttpMethod_GET, "SearchSubmissionsIntegration", searchSubmissionsLambda)
	addRoute("/submissions/stats/duplicates", awscdkapigatewayv2alpha.HttpMethod_GET, "DuplicateStatsIntegration", duplicateStatsLambda)
	addRoute("/submissions/existing-emails", awscdkapigatewayv2alpha.HttpMethod_GET, "ExistingEmailsIntegration", existingEmailsLambda)
	addRoute("/submissions/{id}", awscdkapigatewayv2alpha.HttpMethod_GET, "GetSubmissionIntegration", getSubmissionLambda)
	addRoute("/submissions/{id}", awscdkapigatewayv2alpha.HttpMethod_DELETE, "DeleteSubmissionIntegration", deleteSubmissionLambda)

	// Stack Outputs
	awscdk.NewCfnOutput(stack, jsii.String("ApiEndpoint"), &awscdk.CfnOutputProps{
		Value: httpApi.Url(),
	})

	return stack
}
